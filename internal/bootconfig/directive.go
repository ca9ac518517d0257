// Package bootconfig appends directives to the firmware boot configuration
// file without ever duplicating or rewriting existing lines.
package bootconfig

import "strings"

// DefaultPath is the Raspberry Pi OS (bookworm) boot configuration file.
const DefaultPath = "/boot/firmware/config.txt"

// Directive is one setting the boot configuration must contain.
type Directive struct {
	// Marker is the substring whose presence means the directive is applied.
	Marker string

	// Text is appended when Marker is absent. Defaults to Marker.
	Text string

	// Group names the comment header the text is appended under.
	Group string
}

func (d Directive) text() string {
	t := d.Text
	if t == "" {
		t = d.Marker
	}
	if !strings.HasSuffix(t, "\n") {
		t += "\n"
	}
	return t
}

// Present reports whether every directive's marker occurs in content. It is
// a plain substring check, so a commented-out directive also counts.
func Present(content string, directives ...Directive) bool {
	for _, d := range directives {
		if !strings.Contains(content, d.Marker) {
			return false
		}
	}
	return true
}

const (
	groupSPI     = "SPI Configuration"
	groupI2C     = "I2C Configuration"
	groupUART    = "GPS/UART Configuration"
	groupMeshAdv = "MeshAdv Mini Configuration"
)

// SPIDirectives enable the SPI bus and a single chip-select overlay, which
// LoRa HATs need.
func SPIDirectives() []Directive {
	return []Directive{
		{Marker: "dtparam=spi=on", Group: groupSPI},
		{Marker: "dtoverlay=spi0-0cs", Group: groupSPI},
	}
}

// I2CDirectives enable the ARM I2C bus.
func I2CDirectives() []Directive {
	return []Directive{
		{Marker: "dtparam=i2c_arm=on", Group: groupI2C},
	}
}

// UARTDirectives enable the primary UART for GPS modules. The Pi 5 also
// needs the uart0 overlay to route it to the header pins.
func UARTDirectives(pi5 bool) []Directive {
	ds := []Directive{{Marker: "enable_uart=1", Group: groupUART}}
	if pi5 {
		ds = append(ds, Directive{Marker: "dtoverlay=uart0", Group: groupUART})
	}
	return ds
}

// MeshAdvMiniDirectives drive the HAT's power-enable GPIO high and expose
// the GPS PPS signal.
func MeshAdvMiniDirectives() []Directive {
	return []Directive{
		{Marker: "gpio=4=op,dh", Group: groupMeshAdv},
		{Marker: "dtoverlay=pps-gpio,gpiopin=17", Group: groupMeshAdv},
	}
}
