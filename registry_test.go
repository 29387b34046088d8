package fgen

import (
	"context"
	"reflect"
	"testing"

	"github.com/gobeaver/fgen/storage"
)

func nopHandler() HandlerFactory {
	return func() (Handler, error) {
		return HandlerFunc(func(context.Context, *Call) (Output, error) { return true, nil }), nil
	}
}

func testCatalog(t *testing.T, handlerIDs ...string) *Catalog {
	t.Helper()
	c := NewCatalog()
	for _, id := range handlerIDs {
		if err := c.RegisterHandler(id, nopHandler()); err != nil {
			t.Fatalf("RegisterHandler(%q): %v", id, err)
		}
	}
	return c
}

func TestDriverNameFor(t *testing.T) {
	tests := []struct {
		name     string
		policy   bool
		fileType string
		want     string
		wantOK   bool
	}{
		{"mapped", true, "image/png", "img", true},
		{"mapped without policy", false, "image/png", "img", true},
		{"unmapped with policy", true, "text/plain", "text/plain", true},
		{"unmapped without policy", false, "text/plain", "", false},
		{"empty type", true, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := NewRelationTable(tt.policy)
			if err := rt.AddRelation("img", "image/png", true); err != nil {
				t.Fatal(err)
			}
			got, ok := rt.DriverNameFor(tt.fileType)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("DriverNameFor(%q) = %q, %v; want %q, %v", tt.fileType, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRelationMergePolicy(t *testing.T) {
	rt := NewRelationTable(false)
	mustNoErr(t, rt.AddRelations("img", []string{"image/png", "image/jpeg"}, true))

	// kept without replace
	mustNoErr(t, rt.AddRelation("photo", "image/jpeg", false))
	if d, _ := rt.DriverNameFor("image/jpeg"); d != "img" {
		t.Errorf("replace=false moved image/jpeg to %q", d)
	}

	// moved with replace
	mustNoErr(t, rt.AddRelation("photo", "image/jpeg", true))
	if d, _ := rt.DriverNameFor("image/jpeg"); d != "photo" {
		t.Errorf("replace=true left image/jpeg on %q", d)
	}
	if got := rt.RelationFor("img"); !reflect.DeepEqual(got, []string{"image/png"}) {
		t.Errorf("RelationFor(img) = %v", got)
	}
	if got := rt.Drivers(); !reflect.DeepEqual(got, []string{"img", "photo"}) {
		t.Errorf("Drivers() = %v", got)
	}
}

func TestRelationForPolicy(t *testing.T) {
	rt := NewRelationTable(true)
	mustNoErr(t, rt.AddRelations("img", []string{"image/png", "image/gif"}, true))

	if got := rt.RelationFor("img"); !reflect.DeepEqual(got, []string{"image/png", "image/gif"}) {
		t.Errorf("RelationFor(img) = %v", got)
	}
	if got := rt.RelationFor("audio/mpeg"); !reflect.DeepEqual(got, []string{"audio/mpeg"}) {
		t.Errorf("RelationFor(unmapped) = %v", got)
	}
	if p, ok := rt.PrimaryType("img"); !ok || p != "image/png" {
		t.Errorf("PrimaryType(img) = %q, %v", p, ok)
	}

	rt.SetFileTypeEqualDriverName(false)
	if got := rt.RelationFor("audio/mpeg"); got != nil {
		t.Errorf("RelationFor(unmapped) without policy = %v", got)
	}
}

func TestAddRelationRejectsEmptyType(t *testing.T) {
	rt := NewRelationTable(true)
	if err := rt.AddRelations("img", []string{"image/png", ""}, true); !IsInvalidRegistration(err) {
		t.Fatalf("want ErrInvalidRegistration, got %v", err)
	}
	if len(rt.Relations()) != 0 {
		t.Errorf("rejected call stored %v", rt.Relations())
	}
}

func TestHandlerForFallbackChain(t *testing.T) {
	reg := NewHandlerRegistry(testCatalog(t, "exact", "default", "fallback"))
	mustNoErr(t, reg.AddHandler("img", "thumbs", "exact", true))
	mustNoErr(t, reg.AddHandler("img", "", "default", true))
	mustNoErr(t, reg.AddHandler("doc", "thumbs", "exact", true))

	tests := []struct {
		name     string
		driver   string
		handler  string
		fallback string
		want     string
		wantOK   bool
	}{
		{"exact entry", "img", "thumbs", "fallback", "exact", true},
		{"driver default", "img", "unknown", "fallback", "default", true},
		{"caller fallback", "doc", "unknown", "fallback", "fallback", true},
		{"unknown driver uses fallback", "video", "x", "fallback", "fallback", true},
		{"nothing", "doc", "unknown", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reg.HandlerFor(tt.driver, tt.handler, tt.fallback)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("HandlerFor = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAddHandlerRejectsUnknownImplementation(t *testing.T) {
	reg := NewHandlerRegistry(testCatalog(t, "known"))

	err := reg.AddHandler("img", "thumbs", "missing", true)
	if !IsInvalidRegistration(err) {
		t.Fatalf("want ErrInvalidRegistration, got %v", err)
	}
	if _, ok := reg.HandlerFor("img", "thumbs", ""); ok {
		t.Error("rejected registration was stored")
	}

	err = reg.AddHandlers("img", map[string]string{"a": "known", "b": "missing"}, true)
	if !IsInvalidRegistration(err) {
		t.Fatalf("want ErrInvalidRegistration, got %v", err)
	}
	if h := reg.Handlers("img"); len(h) != 0 {
		t.Errorf("partial AddHandlers stored %v", h)
	}
}

func TestAddHandlerMergePolicy(t *testing.T) {
	reg := NewHandlerRegistry(testCatalog(t, "a", "b"))
	mustNoErr(t, reg.AddHandler("img", DefaultHandler, "a", true))
	mustNoErr(t, reg.AddHandler("img", "", "b", false))

	if id, _ := reg.HandlerFor("img", "", ""); id != "a" {
		t.Errorf("replace=false overwrote default with %q", id)
	}
	mustNoErr(t, reg.AddHandler("img", "", "b", true))
	if id, _ := reg.HandlerFor("img", DefaultHandler, ""); id != "b" {
		t.Errorf("replace=true kept %q", id)
	}
}

func TestInspectorRegistry(t *testing.T) {
	c := NewCatalog()
	pass := InspectorFunc(func(context.Context, storage.FileReader, string, string) (bool, error) { return true, nil })
	mustNoErr(t, c.RegisterInspectorInstance("pass", pass))
	mustNoErr(t, c.RegisterInspectorInstance("other", pass))

	reg := NewInspectorRegistry(c)
	if err := reg.AddInspector("img", "missing", true); !IsInvalidRegistration(err) {
		t.Fatalf("want ErrInvalidRegistration, got %v", err)
	}

	mustNoErr(t, reg.AddInspector("img", "pass", true))
	mustNoErr(t, reg.AddInspector("img", "other", false))
	if id, _ := reg.InspectorFor("img"); id != "pass" {
		t.Errorf("InspectorFor(img) = %q", id)
	}
	if _, ok := reg.InspectorFor("doc"); ok {
		t.Error("doc should have no inspector")
	}
}

func TestSetRelationsReplacesAll(t *testing.T) {
	table := NewRelationTable(false)
	mustNoErr(t, table.AddRelation("old", "text/plain", true))

	mustNoErr(t, table.SetRelations(map[string][]string{
		"img": {"image/png", "image/jpeg"},
		"doc": {"application/pdf"},
	}))
	if _, ok := table.DriverNameFor("text/plain"); ok {
		t.Error("old mapping should be gone")
	}
	if got := table.RelationFor("img"); !reflect.DeepEqual(got, []string{"image/png", "image/jpeg"}) {
		t.Errorf("RelationFor(img) = %v", got)
	}
	if got := table.Drivers(); !reflect.DeepEqual(got, []string{"doc", "img"}) {
		t.Errorf("Drivers() = %v", got)
	}

	if err := table.SetRelations(map[string][]string{"bad": {""}}); !IsInvalidRegistration(err) {
		t.Fatalf("want ErrInvalidRegistration, got %v", err)
	}
	if d, _ := table.DriverNameFor("image/png"); d != "img" {
		t.Error("failed SetRelations must leave the table unchanged")
	}
}

func TestSetHandlersReplacesAll(t *testing.T) {
	reg := NewHandlerRegistry(testCatalog(t, "a", "b"))
	mustNoErr(t, reg.AddHandler("old", "", "a", true))

	mustNoErr(t, reg.SetHandlers(map[string]map[string]string{
		"img": {"": "a", "sign": "b"},
	}))
	if _, ok := reg.HandlerFor("old", "", ""); ok {
		t.Error("old slots should be gone")
	}
	if id, _ := reg.HandlerFor("img", "sign", ""); id != "b" {
		t.Errorf("HandlerFor(img, sign) = %q", id)
	}

	if err := reg.SetHandlers(map[string]map[string]string{"doc": {"": "missing"}}); !IsInvalidRegistration(err) {
		t.Fatalf("want ErrInvalidRegistration, got %v", err)
	}
	if id, _ := reg.HandlerFor("img", "", ""); id != "a" {
		t.Error("failed SetHandlers must leave the registry unchanged")
	}
}

func TestSetInspectorsReplacesAll(t *testing.T) {
	c := NewCatalog()
	pass := InspectorFunc(func(context.Context, storage.FileReader, string, string) (bool, error) { return true, nil })
	mustNoErr(t, c.RegisterInspectorInstance("pass", pass))

	reg := NewInspectorRegistry(c)
	mustNoErr(t, reg.AddInspector("old", "pass", true))
	mustNoErr(t, reg.SetInspectors(map[string]string{"img": "pass"}))
	if got := reg.Inspectors(); !reflect.DeepEqual(got, map[string]string{"img": "pass"}) {
		t.Errorf("Inspectors() = %v", got)
	}

	if err := reg.SetInspectors(map[string]string{"doc": "missing"}); !IsInvalidRegistration(err) {
		t.Fatalf("want ErrInvalidRegistration, got %v", err)
	}
	if _, ok := reg.InspectorFor("img"); !ok {
		t.Error("failed SetInspectors must leave the registry unchanged")
	}
}

func TestOperationsReservedNames(t *testing.T) {
	ops := NewOperations()
	fn := func(context.Context, *Call) (Output, error) { return nil, nil }

	for _, name := range []string{"handle", "source_directory", "destination_directory", ""} {
		if err := ops.Register(name, fn); !IsInvalidRegistration(err) {
			t.Errorf("Register(%q) = %v, want ErrInvalidRegistration", name, err)
		}
	}
	mustNoErr(t, ops.Register("thumbnail", fn))
	if got := ops.Names(); !reflect.DeepEqual(got, []string{"thumbnail"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestIsReservedOperation(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"handle", true},
		{"source_directory", true},
		{"destination_directory", true},
		{"Handle", false},
		{"thumbnail", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsReservedOperation(tt.name); got != tt.want {
			t.Errorf("IsReservedOperation(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
