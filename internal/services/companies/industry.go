package companies

import "domainfinder/internal/domain"

// naceDivisions maps the two-digit NACE division to a broad category.
// Read-only after package init.
var naceDivisions = buildNACETable()

func buildNACETable() map[string]string {
	ranges := []struct {
		from, to int
		category string
	}{
		{1, 3, "agriculture"},
		{5, 9, "mining"},
		{10, 33, "manufacturing"},
		{35, 39, "utilities"},
		{41, 43, "construction"},
		{45, 47, "trade"},
		{49, 53, "transport"},
		{55, 56, "accommodation"},
		{58, 63, "information"},
		{64, 66, "finance"},
		{68, 68, "real_estate"},
		{69, 75, "professional"},
		{77, 82, "services"},
		{84, 84, "public"},
		{85, 85, "education"},
		{86, 88, "health"},
		{90, 93, "arts"},
		{94, 99, "other"},
	}
	table := make(map[string]string, 90)
	for _, r := range ranges {
		for d := r.from; d <= r.to; d++ {
			table[twoDigits(d)] = r.category
		}
	}
	return table
}

func twoDigits(d int) string {
	return string([]byte{byte('0' + d/10), byte('0' + d%10)})
}

// IndustryCategory maps a NACE code ("62.010") to its broad category.
// No code gives domain.IndustryUnknown; a code the table does not cover
// gives domain.IndustryOther.
func IndustryCategory(code string) string {
	if code == "" {
		return domain.IndustryUnknown
	}
	if len(code) < 2 {
		return domain.IndustryOther
	}
	if category, ok := naceDivisions[code[:2]]; ok {
		return category
	}
	return domain.IndustryOther
}
