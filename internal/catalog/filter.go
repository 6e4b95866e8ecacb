package catalog

import "strings"

// FilterByGenre keeps the books whose genre equals genre exactly. GenreAll and the empty
// string return the input unchanged.
func FilterByGenre(books []Book, genre string) []Book {
	if genre == "" || genre == GenreAll {
		return books
	}

	filtered := make([]Book, 0, len(books))
	for _, b := range books {
		if b.Genre == genre {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// Search returns the books whose title, author or genre contains query, ignoring case.
func Search(books []Book, query string) []Book {
	found := make([]Book, 0)
	for _, b := range books {
		if Matches(b, query) {
			found = append(found, b)
		}
	}
	return found
}

func Matches(b Book, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(b.Title), q) ||
		strings.Contains(strings.ToLower(b.Author), q) ||
		strings.Contains(strings.ToLower(b.Genre), q)
}

// likePattern turns a user query into an ILIKE substring pattern with the LIKE
// metacharacters escaped.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}
