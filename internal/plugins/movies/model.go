// Package movies serves movie metadata backed by the OMDb API. Every
// upstream lookup goes through a time-windowed response cache so repeated
// browsing does not burn through the OMDb request quota. All endpoints
// require an authenticated user.
package movies

// Movie is the summary shape returned by search-style endpoints. Field
// names follow OMDb's capitalized JSON convention so the payload matches
// what clients built against OMDb already expect.
type Movie struct {
	ImdbID string `json:"imdbID"`
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	Poster string `json:"Poster"`
	Type   string `json:"Type"`
}

// MovieDetail is the full record returned for a single title lookup.
type MovieDetail struct {
	ImdbID     string `json:"imdbID"`
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Poster     string `json:"Poster"`
	ImdbRating string `json:"imdbRating"`
	Plot       string `json:"Plot"`
	Genre      string `json:"Genre"`
	Runtime    string `json:"Runtime"`
	Director   string `json:"Director"`
	Actors     string `json:"Actors"`
}

// SearchResult is a page of movies plus the upstream's total match count.
type SearchResult struct {
	Movies []Movie `json:"movies"`
	Total  int     `json:"total"`
}
