package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityToTableNameSimple(t *testing.T) {
	assert.Equal(t, "users", EntityToTableName("User"))
}

func TestEntityToTableNameCamelCase(t *testing.T) {
	assert.Equal(t, "order_items", EntityToTableName("OrderItem"))
}

func TestEntityToTableNameIrregularPlural(t *testing.T) {
	assert.Equal(t, "people", EntityToTableName("Person"))
	assert.Equal(t, "children", EntityToTableName("Child"))
	assert.Equal(t, "mice", EntityToTableName("Mouse"))
}

func TestEntityToTableNameAlreadyEndingInS(t *testing.T) {
	assert.Equal(t, "statuses", EntityToTableName("Status"))
	assert.Equal(t, "series", EntityToTableName("Series"))
}

func TestEntityToTableNameMultiWordPascalCase(t *testing.T) {
	assert.Equal(t, "shopping_cart_items", EntityToTableName("ShoppingCartItem"))
}
