// Package inspect identifies file content and checks that it matches the
// type a driver expects.
//
// Detection reads a short header and compares it against known magic byte
// signatures, falling back to net/http sniffing and finally to the file
// extension. Inspectors build on detection to gate processing:
//
//	ok, err := inspect.NewMagicInspector().Check(ctx, src, "photo.jpg", "image/jpeg")
//
// MagicInspector only compares MIME types. ContentInspector additionally runs
// a ContentValidator (image header decode, PDF header and trailer, ZIP
// directory, JSON syntax) registered for the detected type.
package inspect
