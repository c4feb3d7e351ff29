package export

// Dataset defines tabular export content. Rows hold cells in header order.
type Dataset struct {
	Title   string
	Meta    []MetaField
	Headers []string
	Rows    [][]string
}

// MetaField is a labelled value printed above the table.
type MetaField struct {
	Label string
	Value string
}
