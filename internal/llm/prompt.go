package llm

import "strings"

// BuildPrompt returns the instruction sent with every drawing. The model
// must report raw measurements only; all arithmetic happens locally.
func BuildPrompt() string {
	return extractionPrompt
}

const extractionPrompt = `You are reading an engineering drawing of a drawn (stamped) sheet-metal box or cup.
The weight will be calculated from the bounding dimensions you report, so accuracy matters.

Return ONLY a JSON object with exactly these keys:
1. "shape_type": "rectangular" or "round".
2. "outer_width": the largest outer (flange) dimension across the width, in mm.
3. "outer_height": the largest outer (flange) dimension across the height, in mm.
4. "draw_depth": the depth of the drawn box as seen in the side view, in mm. 19.05 mm is common, but check for other values such as 25, 50 or 90+ mm.
5. "draw_width": the width of the inner drawn box, in mm (rectangular parts).
6. "draw_height": the height of the inner drawn box, in mm (rectangular parts).
7. "draw_diameter": the diameter of the draw, in mm (round parts).
8. "cutout_diameter": the diameter of the large central hole, in mm (round parts).

Rules:
- Use null for any value that does not apply, for example draw_diameter on a rectangular box.
- Report every number as a plain float in millimetres, without units.
- Do not perform any calculations. Do not report areas, volumes or weights.
- Do not add commentary, markdown or extra keys.`

// StripFences removes markdown code-fence markers anywhere in s and trims
// surrounding whitespace.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
