package provider

// maxExtractScan bounds how much of a reply is scanned for a JSON region.
const maxExtractScan = 256 << 10

// ExtractObject returns the first balanced {...} region of text.
func ExtractObject(text string) (string, bool) {
	return extractBalanced(text, '{', '}')
}

// ExtractArray returns the first balanced [...] region of text.
func ExtractArray(text string) (string, bool) {
	return extractBalanced(text, '[', ']')
}

// extractBalanced scans for the first open delimiter and returns the region
// up to its matching close. Delimiters inside JSON strings are ignored once
// the region has started; prose before it is not treated as JSON.
func extractBalanced(text string, open, close byte) (string, bool) {
	if len(text) > maxExtractScan {
		text = text[:maxExtractScan]
	}

	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if depth == 0 {
			if ch == open {
				start = i
				depth = 1
			}
			continue
		}
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
