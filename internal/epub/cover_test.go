package epub

import "testing"

func hrefs(refs []CoverRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Href
	}
	return out
}

func TestCoverRefs_Properties(t *testing.T) {
	opf := &OPF{
		Manifest: map[string]ManifestItem{
			"cover-img": {
				ID:         "cover-img",
				Href:       "images/cover.jpg",
				MediaType:  "image/jpeg",
				Properties: []string{"cover-image"},
			},
			"ch1": {
				ID:        "ch1",
				Href:      "text/ch1.xhtml",
				MediaType: "application/xhtml+xml",
			},
		},
		ManifestOrder: []string{"cover-img", "ch1"},
	}

	refs := opf.CoverRefs()
	if len(refs) != 1 {
		t.Fatalf("CoverRefs() = %v, want one ref", hrefs(refs))
	}
	if refs[0].Href != "images/cover.jpg" {
		t.Errorf("Href = %q, want %q", refs[0].Href, "images/cover.jpg")
	}
	if refs[0].Type != "cover-image" {
		t.Errorf("Type = %q, want %q", refs[0].Type, "cover-image")
	}
	if refs[0].MediaType != "image/jpeg" {
		t.Errorf("MediaType = %q, want %q", refs[0].MediaType, "image/jpeg")
	}
}

func TestCoverRefs_Meta(t *testing.T) {
	opf := &OPF{
		Metadata: Metadata{
			CoverID: "cover-image",
		},
		Manifest: map[string]ManifestItem{
			"cover-image": {
				ID:        "cover-image",
				Href:      "OEBPS/images/cover.jpg",
				MediaType: "image/jpeg",
			},
		},
		ManifestOrder: []string{"cover-image"},
	}

	refs := opf.CoverRefs()
	if len(refs) != 1 || refs[0].Href != "OEBPS/images/cover.jpg" {
		t.Fatalf("CoverRefs() = %v, want [OEBPS/images/cover.jpg]", hrefs(refs))
	}
}

func TestCoverRefs_GuideTypesCaseInsensitive(t *testing.T) {
	opf := &OPF{
		Manifest: map[string]ManifestItem{
			"thumb": {ID: "thumb", Href: "images/thumb.jpg", MediaType: "image/jpeg"},
			"full":  {ID: "full", Href: "images/cover-standard.jpg", MediaType: "image/jpeg"},
		},
		ManifestOrder: []string{"thumb", "full"},
		Guide: []GuideReference{
			{Type: "other.ms-COVERimage", Href: "images/thumb.jpg"},
			{Type: "other.ms-coverimage-standard", Href: "images/cover-standard.jpg"},
			{Type: "toc", Href: "toc.xhtml"},
		},
	}

	refs := opf.CoverRefs()
	if len(refs) != 2 {
		t.Fatalf("CoverRefs() = %v, want two refs", hrefs(refs))
	}
	if refs[0].Type != "other.ms-COVERimage" || refs[1].Type != "other.ms-coverimage-standard" {
		t.Errorf("types = %q, %q", refs[0].Type, refs[1].Type)
	}
}

func TestCoverRefs_GuidePointsToXHTML_SkipsToFilename(t *testing.T) {
	opf := &OPF{
		Manifest: map[string]ManifestItem{
			"cover-page": {
				ID:        "cover-page",
				Href:      "OEBPS/cover.xhtml",
				MediaType: "application/xhtml+xml",
			},
			"img-cover": {
				ID:        "img-cover",
				Href:      "OEBPS/images/cover.png",
				MediaType: "image/png",
			},
		},
		ManifestOrder: []string{"cover-page", "img-cover"},
		Guide: []GuideReference{
			{Type: "cover", Href: "OEBPS/cover.xhtml"},
		},
	}

	refs := opf.CoverRefs()
	if len(refs) != 1 {
		t.Fatalf("CoverRefs() = %v, want one ref", hrefs(refs))
	}
	if refs[0].Href != "OEBPS/images/cover.png" || refs[0].Type != "filename" {
		t.Errorf("ref = %+v, want filename match on cover.png", refs[0])
	}
}

func TestCoverRefs_GuideOutsideManifestKept(t *testing.T) {
	opf := &OPF{
		Manifest: map[string]ManifestItem{},
		Guide: []GuideReference{
			{Type: "other.ms-coverimage", Href: "images/cover&back.jpg"},
		},
	}

	refs := opf.CoverRefs()
	if len(refs) != 1 || refs[0].MediaType != "" {
		t.Fatalf("CoverRefs() = %+v, want one unlisted ref", refs)
	}
}

func TestCoverRefs_FilenameSVGExcluded(t *testing.T) {
	opf := &OPF{
		Manifest: map[string]ManifestItem{
			"svg-cover": {
				ID:        "svg-cover",
				Href:      "images/cover.svg",
				MediaType: "image/svg+xml",
			},
		},
		ManifestOrder: []string{"svg-cover"},
	}

	if refs := opf.CoverRefs(); len(refs) != 0 {
		t.Errorf("CoverRefs() = %v, want none (SVG should be excluded)", hrefs(refs))
	}
}

func TestCoverRefs_Deduplicated(t *testing.T) {
	opf := &OPF{
		Metadata: Metadata{CoverID: "c"},
		Manifest: map[string]ManifestItem{
			"c": {ID: "c", Href: "cover.jpg", MediaType: "image/jpeg", Properties: []string{"cover-image"}},
		},
		ManifestOrder: []string{"c"},
		Guide:         []GuideReference{{Type: "cover", Href: "cover.jpg"}},
	}

	refs := opf.CoverRefs()
	if len(refs) != 1 {
		t.Fatalf("CoverRefs() = %v, want one ref", hrefs(refs))
	}
	if refs[0].Type != "cover" {
		t.Errorf("Type = %q, want guide type %q", refs[0].Type, "cover")
	}
}
