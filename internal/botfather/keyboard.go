package botfather

import "strings"

// ResolveButton picks the button whose label contains target, scanning rows
// top to bottom and buttons left to right. Without a match the first button
// of the first row is used. ok is false when the grid is empty or the chosen
// button has no callback payload; callers then fall back to plain text.
func ResolveButton(kb Keyboard, target string) (data []byte, ok bool) {
	needle := strings.ToLower(target)
	for _, row := range kb {
		for _, b := range row {
			if strings.Contains(strings.ToLower(b.Label), needle) {
				return b.Data, len(b.Data) > 0
			}
		}
	}
	if len(kb) == 0 || len(kb[0]) == 0 {
		return nil, false
	}
	first := kb[0][0]
	return first.Data, len(first.Data) > 0
}
