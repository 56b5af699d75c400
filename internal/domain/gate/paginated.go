package gate

// Filter narrows a paginated listing. Empty fields match everything.
type Filter struct {
	Image   string  // substring match
	Outcome Outcome // exact
}

// Page of evaluations
type Page struct {
	Data       []*Evaluation `json:"data"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"total_pages"`
}

// Normalize page dan pageSize ke nilai default kalau kosong
func Normalize(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// TotalPages untuk total rows dengan ukuran halaman pageSize
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
