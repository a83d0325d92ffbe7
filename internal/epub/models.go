package epub

// OPF represents the parsed Open Package Format document
type OPF struct {
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in document order
	Guide         []GuideReference
}

// Metadata represents the metadata section of the OPF
type Metadata struct {
	Title       string
	Creators    []Creator
	Language    string
	Identifier  string
	Publisher   string
	Date        string
	Description string
	Subjects    []string
	CoverID     string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// Creator represents a creator (author, editor, etc.) of the book
type Creator struct {
	Name string
	Role string // e.g., "aut" for author, "edt" for editor
}

// ManifestItem represents an item in the manifest
type ManifestItem struct {
	ID         string
	Href       string // resolved against the OPF directory
	MediaType  string
	Properties []string
}

// GuideReference represents a reference in the EPUB 2.0 guide
type GuideReference struct {
	Type  string
	Title string
	Href  string // resolved against the OPF directory, fragment removed
}

// Authors returns creators whose role is "aut" or unset, in document order.
func (m Metadata) Authors() []string {
	var authors []string
	for _, c := range m.Creators {
		if c.Role != "" && c.Role != "aut" {
			continue
		}
		if c.Name != "" {
			authors = append(authors, c.Name)
		}
	}
	return authors
}

// ItemByHref finds the manifest item stored at href.
func (opf *OPF) ItemByHref(href string) (ManifestItem, bool) {
	for _, id := range opf.ManifestOrder {
		if item := opf.Manifest[id]; item.Href == href {
			return item, true
		}
	}
	return ManifestItem{}, false
}
