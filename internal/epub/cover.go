package epub

import (
	"path"
	"strings"

	"github.com/yuanying/bookmeta/internal/metadata"
)

// CoverRef points at an entry that may hold the cover image.
type CoverRef struct {
	Href      string
	Type      string // guide type, "cover-image" or "filename"
	MediaType string // from the manifest, "" when the href is not listed
}

// CoverRefs lists cover image candidates in priority order:
//  1. guide references whose type mentions "cover" (case-insensitive)
//  2. properties="cover-image" (EPUB 3.0)
//  3. meta name="cover" (EPUB 2.0)
//
// Only when none of these name an image, raster manifest images whose
// basename contains "cover" are offered. Guide references to non-image
// manifest items (cover pages) are left out. Each href appears once.
func (opf *OPF) CoverRefs() []CoverRef {
	var refs []CoverRef
	seen := make(map[string]bool)
	add := func(ref CoverRef) {
		if seen[ref.Href] {
			return
		}
		seen[ref.Href] = true
		refs = append(refs, ref)
	}

	for _, g := range opf.Guide {
		if !metadata.IsCoverType(g.Type) {
			continue
		}
		ref := CoverRef{Href: g.Href, Type: g.Type}
		if item, ok := opf.ItemByHref(g.Href); ok {
			if !isImageMediaType(item.MediaType) {
				continue
			}
			ref.MediaType = item.MediaType
		}
		add(ref)
	}

	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		for _, prop := range item.Properties {
			if prop == "cover-image" {
				add(CoverRef{Href: item.Href, Type: "cover-image", MediaType: item.MediaType})
			}
		}
	}

	if opf.Metadata.CoverID != "" {
		if item, ok := opf.Manifest[opf.Metadata.CoverID]; ok && isImageMediaType(item.MediaType) {
			add(CoverRef{Href: item.Href, Type: "cover-image", MediaType: item.MediaType})
		}
	}

	if len(refs) > 0 {
		return refs
	}

	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if !isImageMediaType(item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			add(CoverRef{Href: item.Href, Type: "filename", MediaType: item.MediaType})
		}
	}

	return refs
}

// isImageMediaType checks if a media type is a raster image (SVG excluded).
func isImageMediaType(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
