package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/eyevinn-osaas/strom-sub002/internal/log"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// yamlElementDef is the on-disk shape of one element catalog entry. The
// PropertyDef.Default field is untyped in YAML (one of string/int/float/bool)
// and resolved against Kind after parsing.
type yamlElementDef struct {
	Type       string `yaml:"type"`
	PadTemplates []struct {
		Name      string `yaml:"name"`
		Direction string `yaml:"direction"`
		Media     string `yaml:"media"`
		Presence  string `yaml:"presence"`
	} `yaml:"pad_templates"`
	Properties []struct {
		Name             string `yaml:"name"`
		Kind             string `yaml:"kind"`
		Default          any    `yaml:"default"`
		MutableInPlaying bool   `yaml:"mutable_in_playing"`
		Transform        string `yaml:"transform"`
	} `yaml:"properties"`
}

// LoadDir parses every *.yaml/*.yml file in dir into an ElementCatalog.
// Grounded on the teacher's internal/config YAML-directory loading
// convention (gopkg.in/yaml.v3, one logical document per file).
func LoadDir(dir string) (*ElementCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read dir %s: %w", dir, err)
	}

	var defs []ElementDef
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		var doc struct {
			Elements []yamlElementDef `yaml:"elements"`
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
		}
		for _, y := range doc.Elements {
			d, err := convertElementDef(y)
			if err != nil {
				return nil, fmt.Errorf("catalog: %s: %w", path, err)
			}
			defs = append(defs, d)
		}
	}

	return NewElementCatalog(defs)
}

func convertElementDef(y yamlElementDef) (ElementDef, error) {
	d := ElementDef{Type: y.Type}
	for _, pt := range y.PadTemplates {
		d.PadTemplates = append(d.PadTemplates, types.PadTemplate{
			Name:      pt.Name,
			Direction: types.Direction(pt.Direction),
			Media:     types.MediaType(pt.Media),
			Presence:  types.Presence(pt.Presence),
		})
	}
	for _, p := range y.Properties {
		def, err := convertDefault(types.ValueKind(p.Kind), p.Default)
		if err != nil {
			return ElementDef{}, fmt.Errorf("element %s property %s: %w", y.Type, p.Name, err)
		}
		d.Properties = append(d.Properties, PropertyDef{
			Name: p.Name, Kind: types.ValueKind(p.Kind), Default: def, MutableInPlaying: p.MutableInPlaying,
			Transform: types.UnitTransform(p.Transform),
		})
	}
	return d, nil
}

func convertDefault(kind types.ValueKind, raw any) (types.PropertyValue, error) {
	if raw == nil {
		return types.PropertyValue{Kind: kind}, nil
	}
	switch kind {
	case types.KindString:
		s, _ := raw.(string)
		return types.String(s), nil
	case types.KindBool:
		b, _ := raw.(bool)
		return types.Bool(b), nil
	case types.KindInt:
		switch v := raw.(type) {
		case int:
			return types.Int(int64(v)), nil
		case int64:
			return types.Int(v), nil
		}
	case types.KindUInt:
		switch v := raw.(type) {
		case int:
			return types.UInt(uint64(v)), nil
		case int64:
			return types.UInt(uint64(v)), nil
		}
	case types.KindFloat:
		switch v := raw.(type) {
		case float64:
			return types.Float(v), nil
		case int:
			return types.Float(float64(v)), nil
		}
	}
	return types.PropertyValue{}, fmt.Errorf("cannot interpret default %v as kind %s", raw, kind)
}

// Digest computes a stable content hash over a catalog's type set, used to
// detect whether a reload actually changed anything before paying the cost
// of an atomic swap.
func Digest(c *ElementCatalog) string {
	types := c.Types()
	sort.Strings(types)
	h := sha256.New()
	for _, t := range types {
		d, _ := c.Lookup(t)
		fmt.Fprintf(h, "%s|%d|%d\n", d.Type, len(d.PadTemplates), len(d.Properties))
		for _, pt := range d.PadTemplates {
			fmt.Fprintf(h, "pad|%s|%s|%s|%s\n", pt.Name, pt.Direction, pt.Media, pt.Presence)
		}
		for _, p := range d.Properties {
			fmt.Fprintf(h, "prop|%s|%s|%s|%t|%s\n", p.Name, p.Kind, p.Default.String(), p.MutableInPlaying, p.Transform)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PersistDigest atomically writes the catalog's digest to path, using
// renameio for crash-safe replacement, so operators can diff successive
// reloads without re-parsing the full YAML tree.
func PersistDigest(path string, c *ElementCatalog) error {
	return renameio.WriteFile(path, []byte(Digest(c)+"\n"), 0o644)
}

// Watcher hot-reloads the Holder's catalog whenever dir's contents change,
// using fsnotify the way the teacher's internal/config package watches its
// config directory for changes.
type Watcher struct {
	dir     string
	holder  *Holder
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching dir and installs reloads into holder. Call
// Close to stop.
func NewWatcher(dir string, holder *Holder) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog: fsnotify: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("catalog: watch %s: %w", dir, err)
	}
	w := &Watcher{dir: dir, holder: holder, watcher: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			next, err := LoadDir(w.dir)
			if err != nil {
				log.L().Warn().Err(err).Str("dir", w.dir).Msg("catalog reload failed, keeping previous snapshot")
				continue
			}
			prev := w.holder.Current()
			if prev != nil && Digest(prev) == Digest(next) {
				continue
			}
			w.holder.Swap(next)
			log.L().Info().Str("dir", w.dir).Msg("element catalog reloaded")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.L().Warn().Err(err).Msg("catalog watcher error")
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
