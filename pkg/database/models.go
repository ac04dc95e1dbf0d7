package database

// ConceptQuery filters SearchConcepts. An empty Text matches every concept.
type ConceptQuery struct {
	Text   string
	TypeID *int64
	Limit  int
}

// TemplateSummary is a template without its parts.
type TemplateSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Expression  string `json:"expression"`
	Parts       int    `json:"parts"`
	InUse       bool   `json:"in_use"`
}

// RelationSetFilter narrows ListRelationSets. Zero values match everything.
type RelationSetFilter struct {
	TextID    int64
	ProjectID int64
	Submitted *bool
}
