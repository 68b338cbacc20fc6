package matrixio

import (
	"github.com/kilianp07/ctramp/core/factory"
	"github.com/kilianp07/ctramp/core/matrix"
)

func init() {
	_ = matrix.RegisterReader(matrix.FormatBinary, func(conf map[string]any) (matrix.Reader, error) {
		var c struct {
			ByteOrder string `json:"byte_order"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		order, err := byteOrder(c.ByteOrder)
		if err != nil {
			return nil, err
		}
		return BinaryReader{Order: order}, nil
	})
	_ = matrix.RegisterReader(matrix.FormatZMX, func(map[string]any) (matrix.Reader, error) {
		return ZMXReader{}, nil
	})
}
