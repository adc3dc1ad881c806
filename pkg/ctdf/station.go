package ctdf

import "time"

type Station struct {
	PrimaryIdentifier string `groups:"basic"`

	CreationDateTime     time.Time `groups:"detailed"`
	ModificationDateTime time.Time `groups:"detailed"`

	DataSource *DataSource `groups:"internal" bson:",omitempty"`

	Location *Location `groups:"basic"`
}
