package template

// Fields lists the slots an annotator has to fill in to instantiate t.
//
// TYPE roles (and DATE roles outside the predicate) always produce a slot.
// CONCEPT roles produce one only when they ask for textual evidence.
// RELATION, IS and HAS roles never do.
func Fields(t *Template) []Slot {
	if t == nil {
		return nil
	}
	slots := []Slot{}
	for i := range t.Parts {
		part := &t.Parts[i]
		for _, f := range AllFields {
			if slot, ok := slotFor(part, f); ok {
				slots = append(slots, slot)
			}
		}
	}
	return slots
}

func slotFor(part *Part, f Field) (Slot, bool) {
	role := part.Role(f)
	slot := Slot{
		Type:             role.NodeType,
		PartID:           part.ID,
		PartField:        f,
		Label:            role.Label,
		EvidenceRequired: role.PromptText,
		Description:      role.Description,
	}

	switch role.NodeType {
	case NodeTypeType:
		if role.Type != nil {
			slot.ConceptID = &role.Type.ID
			slot.ConceptLabel = role.Type.Label
		}
		return slot, true
	case NodeTypeDate:
		if f == FieldPredicate {
			return Slot{}, false
		}
		return slot, true
	case NodeTypeConcept:
		if !role.PromptText || role.Concept == nil {
			return Slot{}, false
		}
		slot.ConceptID = &role.Concept.ID
		slot.ConceptLabel = role.Concept.Label
		return slot, true
	}
	return Slot{}, false
}

// RequiredKeys returns the slot keys of Fields(t) as a set.
func RequiredKeys(t *Template) map[SlotKey]Slot {
	out := make(map[SlotKey]Slot)
	for _, s := range Fields(t) {
		out[s.Key()] = s
	}
	return out
}
