package domain

// ViewState is everything a caller controls about the derived views. It is a
// value type; the With* methods return modified copies.
type ViewState struct {
	Filter       FilterConfig
	Sort         SortConfig
	PageIndex    int
	PageSize     int
	UserLocation *Location
}

// NewViewState returns the initial state: default filter, delivery order,
// first page.
func NewViewState() ViewState {
	return ViewState{
		Filter:   DefaultFilterConfig(),
		PageSize: DefaultPageSize,
	}
}

// WithFilter replaces the filter and returns to the first page.
func (s ViewState) WithFilter(cfg FilterConfig) ViewState {
	s.Filter = cfg
	s.PageIndex = 0
	return s
}

// WithSort replaces the sort and returns to the first page.
func (s ViewState) WithSort(cfg SortConfig) ViewState {
	s.Sort = cfg
	s.PageIndex = 0
	return s
}

// WithUserLocation replaces the user location. The distance predicate depends
// on it, so the page resets like any other filter change.
func (s ViewState) WithUserLocation(loc *Location) ViewState {
	s.UserLocation = loc
	s.PageIndex = 0
	return s
}

// WithPage jumps to index. Clamping happens when the view is derived.
func (s ViewState) WithPage(index int) ViewState {
	s.PageIndex = index
	return s
}

// NextPage advances one page, staying on the last page when already there.
func (s ViewState) NextPage(total int) ViewState {
	s.PageIndex = ClampPage(ClampPage(s.PageIndex, total, s.PageSize)+1, total, s.PageSize)
	return s
}

// PrevPage goes back one page, staying on the first page when already there.
func (s ViewState) PrevPage(total int) ViewState {
	s.PageIndex = ClampPage(ClampPage(s.PageIndex, total, s.PageSize)-1, total, s.PageSize)
	return s
}

// View is the pair of outputs derived from one state: the map receives the
// full filtered and sorted set, the table receives one page of it.
type View struct {
	Map   []Feature
	Table Page
}

// Derive filters then sorts the collection once and paginates the result.
func Derive(c FeatureCollection, s ViewState) View {
	results := Sort(Filter(c.Features, s.Filter, s.UserLocation), s.Sort)
	return View{
		Map:   results,
		Table: Paginate(results, s.PageIndex, s.PageSize),
	}
}
