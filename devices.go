package avcapture

import (
	"errors"
	"math"

	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/prop"
)

// ErrNoDevice is returned by SelectDevice when no registered device passes
// the filter.
var ErrNoDevice = errors.New("avcapture: no matching capture device")

// DeviceInfo describes a registered capture device.
type DeviceInfo struct {
	DeviceID   string
	Label      string
	DeviceType driver.DeviceType
	Priority   driver.Priority
}

// EnumerateDevices lists every registered device, preferred first.
func EnumerateDevices() []DeviceInfo {
	drivers := driver.GetManager().Query(nil)
	info := make([]DeviceInfo, 0, len(drivers))
	for _, d := range drivers {
		driverInfo := d.Info()
		info = append(info, DeviceInfo{
			DeviceID:   d.ID(),
			Label:      driverInfo.Label,
			DeviceType: driverInfo.DeviceType,
			Priority:   driverInfo.Priority,
		})
	}
	return info
}

func queryDriverProperties(filter driver.FilterFn) map[driver.Driver][]prop.Media {
	var needToClose []driver.Driver
	drivers := driver.GetManager().Query(filter)
	m := make(map[driver.Driver][]prop.Media)

	for _, d := range drivers {
		if d.Status() == driver.StateClosed {
			if err := d.Open(); err != nil {
				logger.Warnf("skipping %s: %v", d.Info().Label, err)
				continue
			}
			needToClose = append(needToClose, d)
		}
		m[d] = d.Properties()
	}

	for _, d := range needToClose {
		if err := d.Close(); err != nil {
			logger.Warnf("close %s: %v", d.Info().Label, err)
		}
	}
	return m
}

// SelectDevice picks the device whose advertised properties are closest to
// want, weighted by priority. A nil filter considers every device. The
// returned properties are the chosen device's, overlaid with the non-zero
// fields of want.
func SelectDevice(filter driver.FilterFn, want prop.Media) (driver.Driver, prop.Media, error) {
	var best driver.Driver
	var bestProp prop.Media
	minDist := math.Inf(1)

	for d, props := range queryDriverProperties(filter) {
		priority := float64(d.Info().Priority)
		if len(props) == 0 {
			props = []prop.Media{{}}
		}
		for _, p := range props {
			dist := distance(want, p) - priority
			if dist < minDist || (dist == minDist && best != nil && d.Info().Label < best.Info().Label) {
				minDist = dist
				best = d
				bestProp = p
			}
		}
	}

	if best == nil {
		return nil, prop.Media{}, ErrNoDevice
	}
	bestProp.Merge(want)
	return best, bestProp, nil
}

// distance is 0 for an exact match and grows with each property that
// differs. Unset properties on either side match anything.
func distance(want, have prop.Media) float64 {
	var d float64
	d += relDistance(float64(want.Width), float64(have.Width))
	d += relDistance(float64(want.Height), float64(have.Height))
	d += relDistance(float64(want.FrameRate), float64(have.FrameRate))
	if want.FrameFormat != "" && have.FrameFormat != "" && want.FrameFormat != have.FrameFormat {
		d++
	}
	return d
}

func relDistance(want, have float64) float64 {
	if want <= 0 || have <= 0 {
		return 0
	}
	return math.Abs(want-have) / math.Max(want, have)
}
