package bridge

import (
	"fmt"
	"strings"
)

// Channel identifies one sensor stream exposed by the sensor plugin.
type Channel int

const (
	Accelerometer Channel = iota
	Gyroscope
	Magnetometer
	Gravity
	LinearAcceleration
	RotationVector
	GameRotationVector
	GeomagneticRotationVector
	Orientation
	Light
	Proximity
	Pressure
	Humidity
	AmbientTemperature

	numChannels
)

var channelNames = [numChannels]string{
	Accelerometer:             "accelerometer",
	Gyroscope:                 "gyroscope",
	Magnetometer:              "magnetometer",
	Gravity:                   "gravity",
	LinearAcceleration:        "linear_acceleration",
	RotationVector:            "rotation_vector",
	GameRotationVector:        "game_rotation_vector",
	GeomagneticRotationVector: "geomagnetic_rotation_vector",
	Orientation:               "orientation",
	Light:                     "light",
	Proximity:                 "proximity",
	Pressure:                  "pressure",
	Humidity:                  "humidity",
	AmbientTemperature:        "ambient_temperature",
}

// AllChannels returns every channel in polling order.
func AllChannels() []Channel {
	out := make([]Channel, 0, numChannels)
	for c := Channel(0); c < numChannels; c++ {
		out = append(out, c)
	}
	return out
}

// ParseChannel resolves a channel by its snake_case name.
func ParseChannel(name string) (Channel, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for c, s := range channelNames {
		if s == n {
			return Channel(c), nil
		}
	}
	return 0, fmt.Errorf("unknown sensor channel %q", name)
}

// Width is the minimum number of values a read of c must return.
func (c Channel) Width() int {
	if c >= Light {
		return 1
	}
	return 3
}

// Valid reports whether c names a known channel.
func (c Channel) Valid() bool { return c >= 0 && c < numChannels }

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Channel(%d)", int(c))
	}
	return channelNames[c]
}
