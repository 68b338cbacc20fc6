// Package factory instantiates pluggable components from configuration. A
// component is named by a type string and carries a raw settings map that
// its factory decodes into a typed struct. Matrix readers and metrics sinks
// are both built this way.
//
//	readers := factory.NewRegistry[matrix.Reader]()
//	readers.Register("binary", func(conf map[string]any) (matrix.Reader, error) {
//	    var c struct{ ByteOrder string `json:"byte_order"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newBinaryReader(c.ByteOrder)
//	})
//	r, err := readers.Create(factory.ModuleConfig{Type: "binary"})
package factory
