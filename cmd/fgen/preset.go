package main

import (
	"github.com/gobeaver/fgen"
	"github.com/gobeaver/fgen/handlers/checksum"
	"github.com/gobeaver/fgen/handlers/copier"
	"github.com/gobeaver/fgen/handlers/imageinfo"
	"github.com/gobeaver/fgen/inspect"
)

// Inspector identifiers registered by the preset.
const (
	magicInspector   = "magic"
	contentInspector = "content"
)

var presetRelations = map[string][]string{
	"img":     {"image/jpeg", "image/png", "image/gif", "image/webp"},
	"doc":     {"application/pdf"},
	"data":    {"application/json"},
	"archive": {"application/zip"},
}

var presetInspectors = map[string]string{
	"img":     contentInspector,
	"doc":     contentInspector,
	"data":    contentInspector,
	"archive": contentInspector,
}

var presetHandlers = map[string]map[string]string{
	"img":     {fgen.DefaultHandler: imageinfo.ID, "sign": checksum.ID, "store": copier.ID},
	"doc":     {fgen.DefaultHandler: checksum.ID, "sign": checksum.ID, "store": copier.ID},
	"data":    {fgen.DefaultHandler: checksum.ID, "sign": checksum.ID},
	"archive": {fgen.DefaultHandler: checksum.ID, "sign": checksum.ID, "store": copier.ID},
}

var presetRules = fgen.Rules{
	{Driver: "img", Handlers: []fgen.HandlerRule{
		{Handler: fgen.DefaultHandler, Variants: []fgen.VariantRule{{Variant: "dimensions"}}},
		{Handler: "sign", Variants: []fgen.VariantRule{
			{Variant: "signature", Options: fgen.Options{"algorithms": "sha256"}},
		}},
		{Handler: "store", Variants: []fgen.VariantRule{
			{Variant: "original", Options: fgen.Options{"prefix": "originals"}},
		}},
	}},
	{Driver: "doc", Handlers: []fgen.HandlerRule{
		{Handler: fgen.DefaultHandler, Variants: []fgen.VariantRule{{Variant: "signature"}}},
		{Handler: "store", Variants: []fgen.VariantRule{{Variant: "original"}}},
	}},
	{Driver: "data", Handlers: []fgen.HandlerRule{
		{Handler: fgen.DefaultHandler, Variants: []fgen.VariantRule{
			{Variant: "signature", Options: fgen.Options{"algorithms": "xxhash"}},
		}},
	}},
	{Driver: "archive", Handlers: []fgen.HandlerRule{
		{Handler: fgen.DefaultHandler, Variants: []fgen.VariantRule{{Variant: "sha256"}}},
	}},
}

var presetScripts = map[string][]string{
	"fingerprint": {"sign.signature:algorithms=md5|sha256|xxhash"},
	"backup":      {"store.original:unique=true,prefix=backup"},
	"describe":    {"info"},
}

// applyPreset registers the built-in handlers, inspectors and configuration.
// Existing configuration is kept.
func applyPreset(d *fgen.Dispatcher) error {
	for id, factory := range map[string]fgen.HandlerFactory{
		checksum.ID:  checksum.Factory(),
		copier.ID:    copier.Factory(),
		imageinfo.ID: imageinfo.Factory(),
	} {
		if err := d.RegisterHandler(id, factory); err != nil {
			return err
		}
	}
	if err := d.RegisterInspector(magicInspector, func() (fgen.Inspector, error) {
		return inspect.NewMagicInspector(), nil
	}); err != nil {
		return err
	}
	if err := d.RegisterInspector(contentInspector, func() (fgen.Inspector, error) {
		return inspect.NewContentInspector(), nil
	}); err != nil {
		return err
	}

	for driver, types := range presetRelations {
		if err := d.Relations().AddRelations(driver, types, false); err != nil {
			return err
		}
	}
	for driver, id := range presetInspectors {
		if err := d.AddInspector(driver, id, false); err != nil {
			return err
		}
	}
	for driver, handlers := range presetHandlers {
		if err := d.Handlers().AddHandlers(driver, handlers, false); err != nil {
			return err
		}
	}
	if err := d.AddRules(presetRules, false); err != nil {
		return err
	}
	for name, entries := range presetScripts {
		script, err := fgen.ParseScript(entries...)
		if err != nil {
			return err
		}
		if err := d.AddScript(name, script, false); err != nil {
			return err
		}
	}
	return nil
}
