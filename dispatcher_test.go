package fgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gobeaver/fgen/storage"
	"github.com/gobeaver/fgen/storage/memory"
)

const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

var errBoom = errors.New("boom")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is a handler that records the calls it receives.
type recorder struct {
	mu    sync.Mutex
	calls []*Call
}

func (r *recorder) Handle(_ context.Context, call *Call) (Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	switch call.Operation {
	case "fail":
		return nil, errBoom
	case "nothing":
		return nil, nil
	}
	return map[string]any{"ok": true}, nil
}

func (r *recorder) operations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, len(r.calls))
	for i, c := range r.calls {
		ops[i] = c.Handler + "/" + c.Variant + ":" + c.Operation
	}
	return ops
}

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *memory.Adapter, *recorder) {
	t.Helper()
	src := memory.New()
	ctx := context.Background()
	mustNoErr(t, src.Write(ctx, "cat.png", strings.NewReader(pngHeader)))
	mustNoErr(t, src.Write(ctx, "in/dog.png", strings.NewReader(pngHeader)))
	mustNoErr(t, src.Write(ctx, "notes.txt", strings.NewReader("just text")))

	rec := &recorder{}
	d := NewDispatcher(src, append([]Option{WithLogger(quietLogger())}, opts...)...)
	mustNoErr(t, d.Catalog().RegisterHandlerInstance("ok", rec))
	return d, src, rec
}

func TestProcessEndToEnd(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	mustNoErr(t, d.AddRelation("img", "image/png", true))
	mustNoErr(t, d.AddHandler("img", "", "ok", true))
	mustNoErr(t, d.AddRules(Rules{{
		Driver: "img",
		Handlers: []HandlerRule{{
			Variants: []VariantRule{{Variant: "thumbnail"}, {Variant: "original"}},
		}},
	}}, true))

	res, err := d.Process(context.Background(), "cat.png")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := map[string]map[string]map[string]Output{
		"img": {"default": {
			"thumbnail": map[string]any{"ok": true},
			"original":  map[string]any{"ok": true},
		}},
	}
	if got := res.Map(); !reflect.DeepEqual(got, want) {
		t.Errorf("Map() = %v, want %v", got, want)
	}

	js, err := res.OutputsJSON()
	mustNoErr(t, err)
	if got := string(js); got != `{"img":{"default":{"thumbnail":{"ok":true},"original":{"ok":true}}}}` {
		t.Errorf("OutputsJSON() = %s", got)
	}

	if res.Driver != "img" || res.FileType.Type != "image/png" || res.FileType.Extension != "png" {
		t.Errorf("result metadata = %q %+v", res.Driver, res.FileType)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if d.LastResult() != res {
		t.Error("LastResult() is not the returned result")
	}
}

func TestProcessMissingFileKeepsLastResult(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	mustNoErr(t, d.AddHandler("image/png", "", "ok", true))
	mustNoErr(t, d.AddOptions("image/png", "", "original", nil, true))

	first, err := d.Process(context.Background(), "cat.png")
	mustNoErr(t, err)

	res, err := d.Process(context.Background(), "missing.png")
	if !IsFileNotFound(err) {
		t.Fatalf("want ErrFileNotFound, got %v", err)
	}
	if res != nil {
		t.Errorf("result = %v, want nil", res)
	}
	if StageOf(err) != StageStart {
		t.Errorf("StageOf() = %q", StageOf(err))
	}
	var pe *ProcessError
	if !errors.As(err, &pe) || pe.Path != "missing.png" {
		t.Errorf("ProcessError = %+v", pe)
	}
	if d.LastResult() != first {
		t.Error("failed run replaced LastResult")
	}
}

func TestProcessLastResultNilBeforeSuccess(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	if d.LastResult() != nil {
		t.Fatal("LastResult() before any run should be nil")
	}
	_, _ = d.Process(context.Background(), "missing.png")
	if d.LastResult() != nil {
		t.Fatal("LastResult() after failed run should be nil")
	}
}

func TestProcessDriverResolution(t *testing.T) {
	t.Run("type equals driver name", func(t *testing.T) {
		d, _, rec := newTestDispatcher(t)
		mustNoErr(t, d.AddHandler("text/plain", "", "ok", true))
		mustNoErr(t, d.AddOptions("text/plain", "", "words", nil, true))

		res, err := d.Process(context.Background(), "notes.txt")
		mustNoErr(t, err)
		if res.Driver != "text/plain" || len(rec.operations()) != 1 {
			t.Errorf("driver = %q, calls = %v", res.Driver, rec.operations())
		}
	})

	t.Run("unresolved without policy", func(t *testing.T) {
		d, _, rec := newTestDispatcher(t, WithFileTypeEqualDriverName(false))
		mustNoErr(t, d.AddRelation("img", "image/png", true))

		_, err := d.Process(context.Background(), "notes.txt")
		if !IsDriverUnresolved(err) {
			t.Fatalf("want ErrDriverUnresolved, got %v", err)
		}
		if StageOf(err) != StageTypeDetected {
			t.Errorf("StageOf() = %q", StageOf(err))
		}
		if len(rec.operations()) != 0 {
			t.Errorf("handlers ran: %v", rec.operations())
		}
	})

	t.Run("undetermined type", func(t *testing.T) {
		none := TypeDeterminerFunc(func(context.Context, storage.FileReader, string) FileType { return FileType{} })
		d, _, _ := newTestDispatcher(t, WithDeterminer(none))

		_, err := d.Process(context.Background(), "cat.png")
		if !IsDriverUnresolved(err) {
			t.Fatalf("want ErrDriverUnresolved, got %v", err)
		}
	})
}

func TestProcessInspectionGating(t *testing.T) {
	tests := []struct {
		name      string
		inspector Inspector
		wantErr   bool
	}{
		{"accepts", InspectorFunc(func(context.Context, storage.FileReader, string, string) (bool, error) { return true, nil }), false},
		{"rejects", InspectorFunc(func(context.Context, storage.FileReader, string, string) (bool, error) { return false, nil }), true},
		{"errors", InspectorFunc(func(context.Context, storage.FileReader, string, string) (bool, error) { return false, errBoom }), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, rec := newTestDispatcher(t)
			mustNoErr(t, d.Catalog().RegisterInspectorInstance("check", tt.inspector))
			mustNoErr(t, d.AddRelation("img", "image/png", true))
			mustNoErr(t, d.AddInspector("img", "check", true))
			mustNoErr(t, d.AddHandler("img", "", "ok", true))
			mustNoErr(t, d.AddOptions("img", "", "thumbnail", nil, true))

			_, err := d.Process(context.Background(), "cat.png")
			if !tt.wantErr {
				mustNoErr(t, err)
				return
			}
			if !IsTypeMismatch(err) {
				t.Fatalf("want ErrTypeMismatch, got %v", err)
			}
			if StageOf(err) != StageDriverResolved {
				t.Errorf("StageOf() = %q", StageOf(err))
			}
			if n := len(rec.operations()); n != 0 {
				t.Errorf("handler invoked %d times after rejection", n)
			}
		})
	}
}

func TestProcessInspectorReceivesDetectedType(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	var got string
	mustNoErr(t, d.Catalog().RegisterInspectorInstance("spy", InspectorFunc(
		func(_ context.Context, _ storage.FileReader, _ string, expectedType string) (bool, error) {
			got = expectedType
			return true, nil
		})))
	mustNoErr(t, d.AddRelation("img", "image/png", true))
	mustNoErr(t, d.AddInspector("img", "spy", true))

	_, err := d.Process(context.Background(), "cat.png")
	mustNoErr(t, err)
	if got != "image/png" {
		t.Errorf("expected type = %q", got)
	}
}

func TestProcessEmptySubtree(t *testing.T) {
	d, _, rec := newTestDispatcher(t)
	mustNoErr(t, d.AddRelation("img", "image/png", true))

	res, err := d.Process(context.Background(), "cat.png")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !res.IsEmpty() || len(res.Skipped) != 0 || len(rec.operations()) != 0 {
		t.Errorf("want empty result, got %v skipped=%v", res.Map(), res.Skipped)
	}
	if d.LastResult() != res {
		t.Error("empty success should still become LastResult")
	}
}

func TestProcessPartialFailure(t *testing.T) {
	d, _, rec := newTestDispatcher(t)
	mustNoErr(t, d.AddRelation("img", "image/png", true))
	mustNoErr(t, d.AddHandler("img", "sign", "ok", true))
	mustNoErr(t, addPartialFailureRules(d))

	res, err := d.Process(context.Background(), "cat.png")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if got := res.Variants("img", "sign"); !reflect.DeepEqual(got, []string{"good", "after"}) {
		t.Errorf("Variants() = %v", got)
	}

	var reasons []Reason
	for _, s := range res.Skipped {
		reasons = append(reasons, s.Reason)
	}
	want := []Reason{ReasonHandlerFailed, ReasonEmptyOutput, ReasonHandlerUnresolvable}
	if !reflect.DeepEqual(reasons, want) {
		t.Errorf("skip reasons = %v, want %v", reasons, want)
	}
	if !errors.Is(&res.Skipped[0], errBoom) || !errors.Is(&res.Skipped[0], ErrHandlerFailed) {
		t.Errorf("skip error = %v", res.Skipped[0].Err)
	}
	if !errors.Is(&res.Skipped[2], ErrHandlerUnresolvable) {
		t.Errorf("skip error = %v", res.Skipped[2].Err)
	}

	wantCalls := []string{"sign/good:good", "sign/bad:fail", "sign/empty:nothing", "sign/after:after"}
	if got := rec.operations(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
}

func addPartialFailureRules(d *Dispatcher) error {
	return d.AddRules(Rules{{
		Driver: "img",
		Handlers: []HandlerRule{
			{Handler: "sign", Variants: []VariantRule{
				{Variant: "good"},
				{Variant: "bad", Options: Options{OptionMethod: "fail"}},
				{Variant: "empty", Options: Options{OptionMethod: "nothing"}},
			}},
			{Handler: "ghost", Variants: []VariantRule{{Variant: "x"}}},
			{Handler: "sign", Variants: []VariantRule{{Variant: "after"}}},
		},
	}}, true)
}

func TestProcessFallbackAndOverrides(t *testing.T) {
	d, _, rec := newTestDispatcher(t, WithFallbackHandler("ok"))
	alt := &recorder{}
	mustNoErr(t, d.Catalog().RegisterHandlerInstance("alt", alt))
	mustNoErr(t, d.AddRelation("img", "image/png", true))
	mustNoErr(t, d.AddRules(Rules{{
		Driver: "img",
		Handlers: []HandlerRule{
			{Handler: "resize", Variants: []VariantRule{
				{Variant: "small", Options: Options{OptionMethod: "scale"}},
				{Variant: "big", Options: Options{OptionHandler: "alt"}},
				{Variant: "bad", Options: Options{OptionHandler: "missing"}},
			}},
		},
	}}, true))

	res, err := d.Process(context.Background(), "cat.png")
	mustNoErr(t, err)

	if got := rec.operations(); !reflect.DeepEqual(got, []string{"resize/small:scale"}) {
		t.Errorf("fallback calls = %v", got)
	}
	if got := alt.operations(); !reflect.DeepEqual(got, []string{"resize/big:big"}) {
		t.Errorf("override calls = %v", got)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != ReasonHandlerUnresolvable {
		t.Errorf("Skipped = %v", res.Skipped)
	}
}

func TestHandlerInstancesAreCached(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	var built atomic.Int32
	mustNoErr(t, d.RegisterHandler("counted", func() (Handler, error) {
		built.Add(1)
		return &recorder{}, nil
	}))
	mustNoErr(t, d.AddHandler("image/png", "", "counted", true))
	mustNoErr(t, d.AddOptions("image/png", "", "a", nil, true))
	mustNoErr(t, d.AddOptions("image/png", "", "b", nil, true))

	for i := 0; i < 3; i++ {
		_, err := d.Process(context.Background(), "cat.png")
		mustNoErr(t, err)
	}
	if n := built.Load(); n != 1 {
		t.Errorf("factory called %d times, want 1", n)
	}
}

func TestHandlerConstructionFailureIsRetried(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	var attempts atomic.Int32
	mustNoErr(t, d.RegisterHandler("flaky", func() (Handler, error) {
		if attempts.Add(1) == 1 {
			return nil, errBoom
		}
		return &recorder{}, nil
	}))
	mustNoErr(t, d.AddHandler("image/png", "", "flaky", true))
	mustNoErr(t, d.AddOptions("image/png", "", "a", nil, true))

	res, err := d.Process(context.Background(), "cat.png")
	mustNoErr(t, err)
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != ReasonConstructFailed {
		t.Fatalf("Skipped = %v", res.Skipped)
	}

	res, err = d.Process(context.Background(), "cat.png")
	mustNoErr(t, err)
	if res.Len() != 1 {
		t.Errorf("second run outputs = %d, want 1", res.Len())
	}
}

func TestProcessScripts(t *testing.T) {
	d, _, rec := newTestDispatcher(t)
	mustNoErr(t, d.AddRelation("img", "image/png", true))
	mustNoErr(t, d.AddHandler("img", "", "ok", true))
	mustNoErr(t, d.AddOptions("img", "", "thumbnail", Options{"w": 100}, true))
	mustNoErr(t, d.AddOptions("img", "", "original", nil, true))

	script, err := ParseScript("thumbnail:w=50", "preview")
	mustNoErr(t, err)

	res, err := d.Process(context.Background(), "cat.png", WithScript(script))
	mustNoErr(t, err)
	if got := res.Variants("img", ""); !reflect.DeepEqual(got, []string{"thumbnail", "preview"}) {
		t.Errorf("Variants() = %v", got)
	}
	if w := rec.calls[0].Options["w"]; w != 50 {
		t.Errorf("script option w = %v", w)
	}

	mustNoErr(t, d.AddScript("only-original", Script{{Variant: "original"}}, true))
	res, err = d.Process(context.Background(), "cat.png", WithScriptName("only-original"))
	mustNoErr(t, err)
	if got := res.Variants("img", ""); !reflect.DeepEqual(got, []string{"original"}) {
		t.Errorf("named script Variants() = %v", got)
	}

	_, err = d.Process(context.Background(), "cat.png", WithScriptName("nope"))
	if !IsNoConfiguration(err) {
		t.Errorf("unknown script: want ErrNoConfiguration, got %v", err)
	}
}

func TestProcessWithoutZeroConfig(t *testing.T) {
	d, _, _ := newTestDispatcher(t, WithZeroConfig(false))
	mustNoErr(t, d.AddHandler("image/png", "", "ok", true))
	mustNoErr(t, d.AddOptions("image/png", "", "a", nil, true))

	_, err := d.Process(context.Background(), "cat.png")
	if !IsNoConfiguration(err) {
		t.Fatalf("want ErrNoConfiguration, got %v", err)
	}
	if StageOf(err) != StageInspected {
		t.Errorf("StageOf() = %q", StageOf(err))
	}

	res, err := d.Process(context.Background(), "cat.png", WithScript(Script{{Variant: "a"}}))
	mustNoErr(t, err)
	if res.Len() != 1 {
		t.Errorf("script run outputs = %d", res.Len())
	}

	d.SetZeroConfig(true)
	_, err = d.Process(context.Background(), "cat.png")
	mustNoErr(t, err)
}

func TestCallCarriesDirectories(t *testing.T) {
	d, src, rec := newTestDispatcher(t)
	mustNoErr(t, d.AddHandler("image/png", "", "ok", true))
	mustNoErr(t, d.AddOptions("image/png", "", "a", nil, true))

	_, err := d.Process(context.Background(), "in/dog.png")
	mustNoErr(t, err)
	call := rec.calls[0]
	if call.SourceDir != "in" || call.DestinationDir != "in" {
		t.Errorf("dirs = %q, %q", call.SourceDir, call.DestinationDir)
	}
	if call.Destination != storage.FileSystem(src) {
		t.Error("writable source should be the default destination")
	}
	if err := call.Source.(storage.FileSystem).Write(context.Background(), "x", strings.NewReader("")); !storage.IsReadOnly(err) {
		t.Errorf("handler source should be read-only, got %v", err)
	}

	other := memory.New()
	_, err = d.Process(context.Background(), "in/dog.png", WithDestination(other), WithDestinationDir("out"))
	mustNoErr(t, err)
	call = rec.calls[1]
	if call.DestinationDir != "out" || call.Destination != storage.FileSystem(other) {
		t.Errorf("per-call destination not applied: %q", call.DestinationDir)
	}
}

// slowHandler answers after a delay that shrinks with the variant index so
// completion order is the reverse of dispatch order.
type slowHandler struct {
	active, peak atomic.Int32
}

func (h *slowHandler) Handle(_ context.Context, call *Call) (Output, error) {
	n := h.active.Add(1)
	defer h.active.Add(-1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	var i int
	_, _ = fmt.Sscanf(call.Variant, "v%d", &i)
	time.Sleep(time.Duration(10-i) * time.Millisecond)
	return call.Variant, nil
}

func TestProcessParallelKeepsTreeOrder(t *testing.T) {
	d, _, _ := newTestDispatcher(t, WithParallel(4))
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("slow%d", i)
		mustNoErr(t, d.Catalog().RegisterHandlerInstance(id, &slowHandler{}))
		mustNoErr(t, d.AddHandler("image/png", id, id, true))
		mustNoErr(t, d.AddOptions("image/png", id, fmt.Sprintf("v%d", i), nil, true))
	}

	res, err := d.Process(context.Background(), "cat.png")
	mustNoErr(t, err)

	want := []string{"slow0", "slow1", "slow2", "slow3", "slow4", "slow5", "slow6", "slow7"}
	if got := res.Handlers("image/png"); !reflect.DeepEqual(got, want) {
		t.Errorf("Handlers() = %v, want %v", got, want)
	}
}

func TestProcessParallelSerializesSharedInstance(t *testing.T) {
	d, _, _ := newTestDispatcher(t, WithParallel(4))
	shared := &slowHandler{}
	mustNoErr(t, d.Catalog().RegisterHandlerInstance("shared", shared))
	mustNoErr(t, d.AddHandler("image/png", "", "shared", true))
	for i := 0; i < 6; i++ {
		mustNoErr(t, d.AddOptions("image/png", "", fmt.Sprintf("v%d", i), nil, true))
	}

	res, err := d.Process(context.Background(), "cat.png")
	mustNoErr(t, err)
	if res.Len() != 6 {
		t.Fatalf("outputs = %d", res.Len())
	}
	if p := shared.peak.Load(); p != 1 {
		t.Errorf("shared instance ran %d calls at once", p)
	}
}

type closingHandler struct {
	recorder
	closed bool
}

func (h *closingHandler) Close() error {
	h.closed = true
	return nil
}

func TestCloseReleasesInstances(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	h := &closingHandler{}
	mustNoErr(t, d.Catalog().RegisterHandlerInstance("closing", h))
	mustNoErr(t, d.AddHandler("image/png", "", "closing", true))
	mustNoErr(t, d.AddOptions("image/png", "", "a", nil, true))

	_, err := d.Process(context.Background(), "cat.png")
	mustNoErr(t, err)
	mustNoErr(t, d.Close())
	if !h.closed {
		t.Error("Close() did not close the handler")
	}
}
