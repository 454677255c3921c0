package confidence

import "umbra-hq/umbra/pkg/span"

// structureKeywords are field-label words that indicate a NAME span has
// over-extended into adjacent document structure ("Date of Birth:",
// "Record Number", ...). A NAME detected next to these is usually a label,
// not a person.
var structureKeywords = []string{
	"date", "birth", "record", "number", "phone", "address", "email",
	"member", "account", "status", "dob", "mrn", "ssn", "id",
}

// DefaultModifiers returns the built-in modifier set. Callers may extend
// it through Registry.Add; the set itself is never mutated in place.
func DefaultModifiers() []*Modifier {
	return []*Modifier{
		{
			Name:          "ssn-context-boost",
			FilterTypes:   []span.FilterType{span.FilterSSN},
			ConditionType: ConditionWindowKeyword,
			Keywords:      []string{"ssn", "social", "security"},
			Action:        ActionDelta,
			Value:         0.2,
		},
		{
			Name:          "mrn-context-boost",
			FilterTypes:   []span.FilterType{span.FilterMRN},
			ConditionType: ConditionWindowKeyword,
			Keywords:      []string{"mrn", "medical", "record", "chart"},
			Action:        ActionDelta,
			Value:         0.2,
		},
		{
			Name:          "phone-context-boost",
			FilterTypes:   []span.FilterType{span.FilterPhone, span.FilterFax},
			ConditionType: ConditionWindowKeyword,
			Keywords:      []string{"phone", "call", "tel", "fax", "cell", "mobile"},
			Action:        ActionDelta,
			Value:         0.15,
		},
		{
			Name:          "date-birth-boost",
			FilterTypes:   []span.FilterType{span.FilterDate},
			ConditionType: ConditionWindowKeyword,
			Keywords:      []string{"born", "birth", "dob", "birthday"},
			Action:        ActionDelta,
			Value:         0.15,
		},
		{
			Name:          "account-context-boost",
			FilterTypes:   []span.FilterType{span.FilterAccount},
			ConditionType: ConditionWindowKeyword,
			Keywords:      []string{"account", "acct", "balance", "payment"},
			Action:        ActionDelta,
			Value:         0.15,
		},
		{
			Name:          "name-structure-penalty",
			FilterTypes:   []span.FilterType{span.FilterName},
			ConditionType: ConditionWindowKeyword,
			Keywords:      structureKeywords,
			Action:        ActionDelta,
			Value:         -0.15,
		},
		{
			Name:          "ssn-format-confirm",
			FilterTypes:   []span.FilterType{span.FilterSSN},
			ConditionType: ConditionRegexSurrounding,
			ConditionValue: `(?i)\b(ssn|social\s+security)\b`,
			Action:        ActionOverride,
			Value:         0.95,
		},
		{
			Name:           "phone-extension-boost",
			FilterTypes:    []span.FilterType{span.FilterPhone},
			ConditionType:  ConditionTextAfter,
			ConditionValue: "ext",
			Action:         ActionDelta,
			Value:          0.1,
		},
		{
			Name:           "zipcode-address-boost",
			FilterTypes:    []span.FilterType{span.FilterZipcode},
			ConditionType:  ConditionTextBefore,
			ConditionValue: ",",
			Action:         ActionMultiply,
			Value:          1.2,
		},
		{
			Name:          "age-pattern-boost",
			FilterTypes:   []span.FilterType{span.FilterAge},
			ConditionType: ConditionWindowPattern,
			ConditionValue: `(?i)\b(years?\s+old|y/?o|aged?)\b`,
			Action:        ActionDelta,
			Value:         0.15,
		},
	}
}
