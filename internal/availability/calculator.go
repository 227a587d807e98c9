package availability

// Calculator answers availability questions for one sales mode.
type Calculator interface {
	// MaxQuantity is the most of productID a cart holding reservations can
	// contain, ignoring whatever the cart already holds of productID itself.
	MaxQuantity(productID int64, reservations []Reservation) float64
	// CanSell reports a *ShortageError when qty of productID does not fit.
	CanSell(productID int64, qty float64, reservations []Reservation) error
	// Requirements aggregates stock consumption per stock item.
	Requirements(reservations []Reservation) []Requirement
}

type recipeCalculator struct {
	stock Stock
	book  RecipeBook
}

// NewRecipeCalculator builds a Calculator for finished products.
func NewRecipeCalculator(stock Stock, book RecipeBook) Calculator {
	return recipeCalculator{stock: stock, book: book}
}

func (c recipeCalculator) MaxQuantity(productID int64, reservations []Reservation) float64 {
	return MaxRecipeQuantity(c.stock, c.book, productID, reservations)
}

func (c recipeCalculator) CanSell(productID int64, qty float64, reservations []Reservation) error {
	return CanSellRecipe(c.stock, c.book, productID, qty, reservations)
}

func (c recipeCalculator) Requirements(reservations []Reservation) []Requirement {
	return RecipeRequirements(c.stock, c.book, reservations)
}

type simpleCalculator struct {
	stock Stock
}

// NewSimpleCalculator builds a Calculator for items sold straight from stock.
func NewSimpleCalculator(stock Stock) Calculator {
	return simpleCalculator{stock: stock}
}

func (c simpleCalculator) MaxQuantity(productID int64, _ []Reservation) float64 {
	return MaxSimpleQuantity(c.stock, productID)
}

func (c simpleCalculator) CanSell(productID int64, qty float64, _ []Reservation) error {
	return CanSellSimple(c.stock, productID, qty)
}

func (c simpleCalculator) Requirements(reservations []Reservation) []Requirement {
	return SimpleRequirements(c.stock, reservations)
}
