package graph

// Confidence scores an edge. A name that resolved to several declarations
// splits its certainty between them; missing evidence lowers it further.
func Confidence(kind RelationKind, candidates int, evidence Evidence) float64 {
	base := baseConfidence(kind)

	if candidates > 1 {
		base -= 0.1 * float64(candidates-1)
	}
	if evidence.Filepath == "" {
		base -= 0.05
	}
	if evidence.StartLine <= 0 || evidence.EndLine < evidence.StartLine {
		base -= 0.05
	}

	return clamp(base, 0.1, 0.99)
}

func baseConfidence(kind RelationKind) float64 {
	switch kind {
	case RelationBelongsTo:
		return 0.99
	case RelationCalls, RelationUsesType:
		return 0.9
	case RelationReads:
		return 0.85
	case RelationIncludes:
		return 0.8
	default:
		return 0.55
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
