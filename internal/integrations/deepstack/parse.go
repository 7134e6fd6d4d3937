package deepstack

import "math"

// Face is one named entry of a recognition result, with the
// confidence expressed as a percentage.
type Face struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// unknownLabel is the identity DeepStack assigns to faces it detects
// but cannot match.
const unknownLabel = "unknown"

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseFaces extracts the named faces from a prediction list,
// preserving order. An entry without an identity ends the scan: the
// service only omits identities in detection responses, where no
// entry carries one. Unmatched ("unknown") entries are skipped.
func ParseFaces(predictions []Prediction) []Face {
	faces := []Face{}
	for _, entry := range predictions {
		if entry.UserID == nil {
			break
		}
		if *entry.UserID == unknownLabel {
			continue
		}
		faces = append(faces, Face{
			Name:       *entry.UserID,
			Confidence: round2(100.0 * entry.Confidence),
		})
	}
	return faces
}

// RecognizedFaces tallies identities to their confidence percentage.
// If any entry lacks an identity the whole tally is empty; that is
// the detection-response shape, which matches nobody.
func RecognizedFaces(predictions []Prediction) map[string]float64 {
	matched := map[string]float64{}
	for _, entry := range predictions {
		if entry.UserID == nil {
			return map[string]float64{}
		}
		if *entry.UserID == unknownLabel {
			continue
		}
		matched[*entry.UserID] = round2(100.0 * entry.Confidence)
	}
	return matched
}
