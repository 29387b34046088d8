// Package fgen dispatches files to processing handlers according to layered,
// in-memory configuration.
//
// A [Dispatcher] takes a file from its source storage, determines its type,
// maps the type to a driver, lets the driver's inspector vet the file and
// then runs every (handler, variant) pair configured for the driver. Each
// successful variant lands in a [Result] keyed driver → handler → variant.
//
// # Configuration
//
// Four registries feed the pipeline:
//
//   - [RelationTable]: file type → driver. With the type-equals-driver-name
//     policy an unmapped type is its own driver.
//   - [InspectorRegistry]: driver → inspector.
//   - [HandlerRegistry]: (driver, handler) → implementation, with a default
//     slot per driver.
//   - [RuleTree]: driver → handler → variant → [Options].
//
// Every add call takes a replace flag. Adding an existing key with replace
// overwrites it (option-sets are shallow-merged); without replace the
// existing value is kept. Missing keys are always inserted.
//
// Implementations are registered in the dispatcher's [Catalog] under an
// identifier, and the registries refer to them by that identifier.
//
// # Basic Usage
//
//	src, _ := local.Open("./uploads")
//	d := fgen.NewDispatcher(src)
//
//	_ = d.RegisterHandler("checksum", checksum.Factory())
//	_ = d.AddRelation("img", "image/png", true)
//	_ = d.AddHandler("img", "", "checksum", true)
//	_ = d.AddOptions("img", "", "signature", fgen.Options{"algorithms": "sha256"}, true)
//
//	res, err := d.Process(ctx, "cat.png")
//	if fgen.IsTypeMismatch(err) {
//	    // rejected by the inspector
//	}
//	sum, _ := res.Get("img", "default", "signature")
//
// # Scripts
//
// A [Script] replaces the rule tree for one call. Steps start from the
// configured options of the same variant and lay their own over them:
//
//	script, _ := fgen.ParseScript("signature:algorithms=md5", "copy.original")
//	res, err := d.Process(ctx, "cat.png", fgen.WithScript(script))
//
// # Failures
//
// Terminal outcomes ([ErrFileNotFound], [ErrDriverUnresolved],
// [ErrTypeMismatch], [ErrNoConfiguration]) are returned as a
// [*ProcessError]. A unit whose handler cannot be resolved or fails is left
// out of the result and recorded in [Result.Skipped]; its siblings still
// run.
package fgen
