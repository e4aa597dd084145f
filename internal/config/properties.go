package config

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/magiconair/properties"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// propertiesCodec reads and writes Java-style properties files for viper.
// Values are kept verbatim: no ${key} expansion, and # only starts a comment
// at the beginning of a line.
type propertiesCodec struct{}

func (propertiesCodec) Decode(b []byte, v map[string]any) error {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(b)
	if err != nil {
		return eris.Wrap(err, "config: parse properties")
	}
	for _, key := range p.Keys() {
		val, _ := p.Get(key)
		v[key] = val
	}
	return nil
}

func (propertiesCodec) Encode(v map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := properties.NewProperties()
	p.DisableExpansion = true
	for _, k := range keys {
		if _, _, err := p.Set(k, fmt.Sprint(v[k])); err != nil {
			return nil, eris.Wrapf(err, "config: set property %s", k)
		}
	}

	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return nil, eris.Wrap(err, "config: write properties")
	}
	return buf.Bytes(), nil
}

// newPropertiesViper returns a viper instance that decodes "properties" files
// with propertiesCodec.
func newPropertiesViper() (*viper.Viper, error) {
	reg := viper.NewCodecRegistry()
	if err := reg.RegisterCodec("properties", propertiesCodec{}); err != nil {
		return nil, eris.Wrap(err, "config: register properties codec")
	}
	v := viper.NewWithOptions(viper.WithCodecRegistry(reg))
	v.SetConfigType("properties")
	return v, nil
}
