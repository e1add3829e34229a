package statusserver

import (
	"strconv"
	"time"

	"github.com/chewxy/math32"

	"github.com/teamrocket/dhtnode/sensor"
)

// AppendBody appends the status line "<age_ms>,ms,<temp>,oC,<hum>,%" for r
// to dst. Values carry one decimal place; unknown values render as "nan".
func AppendBody(dst []byte, r sensor.Reading, age time.Duration) []byte {
	if age < 0 {
		age = 0
	}
	dst = strconv.AppendInt(dst, age.Milliseconds(), 10)
	dst = append(dst, ",ms,"...)
	dst = appendValue(dst, r.Temperature)
	dst = append(dst, ",oC,"...)
	dst = appendValue(dst, r.Humidity)
	dst = append(dst, ",%"...)
	return dst
}

func appendValue(dst []byte, v float32) []byte {
	if math32.IsNaN(v) {
		return append(dst, "nan"...)
	}
	return strconv.AppendFloat(dst, float64(v), 'f', 1, 32)
}
