package meshcli

import (
	"strconv"
	"strings"
)

// Regions lists the LoRa region names in enum order.
var Regions = []string{
	"UNSET", "US", "EU_433", "EU_868", "CN", "JP", "ANZ", "KR", "TW",
	"RU", "IN", "NZ_865", "TH", "UA_433", "UA_868", "MY_433", "MY_919", "SG_923",
}

// regionByNumber maps the numeric enum value the CLI may print to its name.
var regionByNumber = func() map[string]string {
	m := make(map[string]string, len(Regions))
	for i, r := range Regions {
		m[strconv.Itoa(i)] = r
	}
	return m
}()

// ValidRegion reports whether name is a known region.
func ValidRegion(name string) bool {
	for _, r := range Regions {
		if r == name {
			return true
		}
	}
	return false
}

// ParseRegion extracts the region from --get lora.region output, which
// interleaves connection chatter with either "lora.region: <value>" or a
// bare value. The value may be a name or its enum number.
func ParseRegion(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isChatter(line) {
			continue
		}
		if _, value, ok := strings.Cut(line, "lora.region:"); ok {
			line = strings.TrimSpace(value)
		}
		if ValidRegion(line) {
			return line
		}
		if name, ok := regionByNumber[line]; ok {
			return name
		}
	}
	return RegionUnknown
}

func isChatter(line string) bool {
	lower := strings.ToLower(line)
	for _, s := range []string{"connected", "requesting", "node info"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
