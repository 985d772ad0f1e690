// Package fuzzy provides approximate string matching over entity fields.
//
// A Matcher is built once per collection from the fields worth matching
// (names, descriptions, types). Each field is compared with the query both
// whole and as sliding token windows close to the query's length, using
// Levenshtein similarity, and an exact substring counts as a perfect match.
// An item's score is its best field score.
//
// Scores are higher-is-better in [0, 1]. With the default threshold of 0.3 a
// candidate must be at least 0.7 similar, which admits one or two typos in a
// short word:
//
//	m := fuzzy.New(items, []string{"name", "description"})
//	for _, r := range m.Search("bandge", 10) {
//	    fmt.Println(r.Item, r.Score)
//	}
package fuzzy
