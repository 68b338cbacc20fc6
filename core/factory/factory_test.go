package factory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type reader struct {
	order string
	wait  time.Duration
}

type readerConf struct {
	ByteOrder string        `json:"byte_order"`
	Timeout   time.Duration `json:"timeout"`
	Workers   int           `json:"workers"`
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*reader]()
	if err := reg.Register("binary", func(conf map[string]any) (*reader, error) {
		var c readerConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &reader{order: c.ByteOrder, wait: c.Timeout}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	r, err := reg.Create(ModuleConfig{Type: "binary", Conf: map[string]any{"byte_order": "little", "timeout": "2s"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assert.Equal(t, "little", r.order)
	assert.Equal(t, 2*time.Second, r.wait)
	assert.True(t, reg.Has("binary"))
	assert.False(t, reg.Has("zmx"))
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	if err := reg.Register("b", func(map[string]any) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = reg.Register("a", func(map[string]any) (int, error) { return 2, nil })
	if err := reg.Register("b", func(map[string]any) (int, error) { return 3, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("c", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if _, err := reg.Create(ModuleConfig{Type: "y"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType got %v", err)
	}
	assert.Equal(t, []string{"a", "b"}, reg.Names())
}

func TestDecodeWeakTypes(t *testing.T) {
	var c readerConf
	if err := Decode(map[string]any{"workers": "4"}, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, 4, c.Workers)
}
