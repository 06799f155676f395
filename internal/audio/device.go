// SPDX-License-Identifier: MIT
package audio

import (
	"time"

	"github.com/gordonklaus/portaudio"
)

// Device represents an audio device.
type Device struct {
	ID                       int
	Name                     string
	HostAPI                  string
	MaxInputChannels         int
	MaxOutputChannels        int
	DefaultSampleRate        float64
	DefaultLowInputLatency   time.Duration
	DefaultHighInputLatency  time.Duration
	DefaultLowOutputLatency  time.Duration
	DefaultHighOutputLatency time.Duration
	IsDefaultInput           bool
	IsDefaultOutput          bool
}

func newDevice(id int, info *portaudio.DeviceInfo) Device {
	d := Device{
		ID:                       id,
		Name:                     info.Name,
		MaxInputChannels:         info.MaxInputChannels,
		MaxOutputChannels:        info.MaxOutputChannels,
		DefaultSampleRate:        info.DefaultSampleRate,
		DefaultLowInputLatency:   info.DefaultLowInputLatency,
		DefaultHighInputLatency:  info.DefaultHighInputLatency,
		DefaultLowOutputLatency:  info.DefaultLowOutputLatency,
		DefaultHighOutputLatency: info.DefaultHighOutputLatency,
	}
	if info.HostApi != nil {
		d.HostAPI = info.HostApi.Name
	}
	return d
}

// Type describes the direction of the device.
func (d Device) Type() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "None"
	}
}

// Stereo reports whether the device can capture two channels.
func (d Device) Stereo() bool { return d.MaxInputChannels >= 2 }
