package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrganizationsLayout(t *testing.T) {
	assert.Equal(t, []string{
		"Index", "OrganizationId", "Name", "Website", "Country",
		"Description", "Founded", "Industry", "NumberOfEmployees",
	}, Organizations.Columns())
	assert.Equal(t, "OrganizationId", Organizations.Schema.PrimaryKey)

	for _, c := range Organizations.Schema.Columns {
		assert.False(t, c.Nullable, "organizations.%s should be required", c.Name)
	}
	require.NoError(t, Organizations.Schema.Validate())
}

func TestCustomersLayout(t *testing.T) {
	assert.Equal(t, []string{
		"Index", "CustomerId", "FirstName", "LastName", "Company", "City",
		"Country", "Phone1", "Phone2", "Email", "SubscriptionDate", "Website",
	}, Customers.Columns())
	assert.Equal(t, "CustomerId", Customers.Schema.PrimaryKey)

	nullable := map[string]bool{}
	for _, c := range Customers.Schema.Columns {
		if c.Nullable {
			nullable[c.Name] = true
		}
	}
	assert.Equal(t, map[string]bool{"Company": true, "Phone1": true, "Phone2": true}, nullable)
	require.NoError(t, Customers.Schema.Validate())
}

func TestSelect(t *testing.T) {
	all, err := Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := Select([]string{"customers"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "customers", one[0].Table())

	_, err = Select([]string{"invoices"})
	assert.ErrorContains(t, err, "unknown table")
}
