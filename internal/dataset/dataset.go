// Package dataset defines the record kinds shipped in the data dump.
package dataset

import (
	"fmt"

	"github.com/jonathan/dump-loader/internal/types"
)

// Dataset ties one file of the extracted dump to its destination table.
type Dataset struct {
	// File is the slash-separated path of the file inside the extraction directory.
	File   string
	Schema types.TableSchema
}

// Columns returns the positional column layout used to read the file.
// The header row of the file is ignored; this list is authoritative.
func (d Dataset) Columns() []string {
	return d.Schema.ColumnNames()
}

// Table returns the destination table name.
func (d Dataset) Table() string {
	return d.Schema.Name
}

func required(name string) types.Column { return types.Column{Name: name} }
func optional(name string) types.Column { return types.Column{Name: name, Nullable: true} }

// Organizations is the organizations dataset.
var Organizations = Dataset{
	File: "dump/organizations.csv",
	Schema: types.TableSchema{
		Name: "organizations",
		Columns: []types.Column{
			required("Index"),
			required("OrganizationId"),
			required("Name"),
			required("Website"),
			required("Country"),
			required("Description"),
			required("Founded"),
			required("Industry"),
			required("NumberOfEmployees"),
		},
		PrimaryKey: "OrganizationId",
	},
}

// Customers is the customers dataset.
var Customers = Dataset{
	File: "dump/customers.csv",
	Schema: types.TableSchema{
		Name: "customers",
		Columns: []types.Column{
			required("Index"),
			required("CustomerId"),
			required("FirstName"),
			required("LastName"),
			optional("Company"),
			required("City"),
			required("Country"),
			optional("Phone1"),
			optional("Phone2"),
			required("Email"),
			required("SubscriptionDate"),
			required("Website"),
		},
		PrimaryKey: "CustomerId",
	},
}

// All returns every known dataset in processing order.
func All() []Dataset {
	return []Dataset{Organizations, Customers}
}

// ByTable looks up a dataset by destination table name.
func ByTable(name string) (Dataset, error) {
	for _, d := range All() {
		if d.Table() == name {
			return d, nil
		}
	}
	return Dataset{}, fmt.Errorf("unknown table: %s", name)
}

// Select resolves a list of table names; an empty list selects every dataset.
func Select(tables []string) ([]Dataset, error) {
	if len(tables) == 0 {
		return All(), nil
	}
	out := make([]Dataset, 0, len(tables))
	for _, name := range tables {
		d, err := ByTable(name)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
