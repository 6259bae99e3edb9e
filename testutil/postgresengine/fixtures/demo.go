package fixtures

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// DemoTitle is one title of the demo catalog with its number of copies.
type DemoTitle struct {
	Title  string
	Author string
	Type   circulation.MediaType
	MinAge int
	Copies int
}

// DemoCustomer is one customer of the demo catalog.
type DemoCustomer struct {
	Name      string
	BirthDate time.Time
}

// DemoTitles is the demo catalog.
var DemoTitles = []DemoTitle{
	{Title: "The Hobbit", Author: "J. R. R. Tolkien", Type: circulation.MediaTypeBook, Copies: 3},
	{Title: "Dune", Author: "Frank Herbert", Type: circulation.MediaTypeBook, Copies: 2},
	{Title: "A Clockwork Orange", Author: "Stanley Kubrick", Type: circulation.MediaTypeMovie, MinAge: 18, Copies: 1},
	{Title: "Spirited Away", Author: "Hayao Miyazaki", Type: circulation.MediaTypeMovie, Copies: 2},
	{Title: "National Geographic 2024/03", Author: "National Geographic Society", Type: circulation.MediaTypeMagazine, Copies: 1},
	{Title: "Kind of Blue", Author: "Miles Davis", Type: circulation.MediaTypeAudio, Copies: 1},
}

// DemoCustomers are the demo customers, one of them under age.
var DemoCustomers = []DemoCustomer{
	{Name: "Ada", BirthDate: time.Date(1985, time.December, 10, 0, 0, 0, 0, time.UTC)},
	{Name: "Linus", BirthDate: time.Date(1992, time.December, 28, 0, 0, 0, 0, time.UTC)},
	{Name: "Kim", BirthDate: time.Date(2013, time.June, 1, 0, 0, 0, 0, time.UTC)},
}

// SeedDemo inserts the demo catalog and returns the number of copies created.
func (c Catalog) SeedDemo(ctx context.Context) (int, error) {
	copies := 0

	for _, title := range DemoTitles {
		mediaID, err := c.AddMedia(ctx, title.Title, title.Author, string(title.Type), title.MinAge)
		if err != nil {
			return copies, err
		}

		for i := 0; i < title.Copies; i++ {
			if _, err = c.AddCopy(ctx, mediaID); err != nil {
				return copies, err
			}
			copies++
		}
	}

	for _, customer := range DemoCustomers {
		if _, err := c.AddCustomer(ctx, customer.Name, customer.BirthDate); err != nil {
			return copies, err
		}
	}

	return copies, nil
}
