package cell

// Language is the source language of a cell or of one of its definitions.
// Two variants exist with asymmetric visibility: definitions made in the
// restricted language are visible only to restricted-language referrers,
// while general-language definitions are visible to everyone.
type Language string

const (
	// LanguageGeneral is the general-purpose language; its definitions are
	// visible to referrers of either language.
	LanguageGeneral Language = "general"
	// LanguageRestricted is the restricted language; its definitions do not
	// leak to general-language referrers.
	LanguageRestricted Language = "restricted"
)

// Valid reports whether l is a known language tag.
func (l Language) Valid() bool {
	return l == LanguageGeneral || l == LanguageRestricted
}

// EdgeAllowed is the visibility table consulted at edge-construction time:
// it reports whether a definition in language def can satisfy a reference
// made by a cell in language ref. The only forbidden combination is a
// restricted-language definition read by a general-language cell.
func EdgeAllowed(def, ref Language) bool {
	return !(def == LanguageRestricted && ref == LanguageGeneral)
}
