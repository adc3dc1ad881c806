package ctdf

type DataSource struct {
	OriginalFormat string `groups:"internal"` // eg. CSV
	Provider       string `groups:"internal"`
	Dataset        string `groups:"internal"`
	Identifier     string `groups:"internal"`
}
