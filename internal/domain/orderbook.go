package domain

// OrderBook representa el libro de órdenes de un token.
type OrderBook struct {
	TokenID string
	Bids    []BookEntry // ordenados mayor a menor precio
	Asks    []BookEntry // ordenados menor a mayor precio
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el book está vacío. No asume orden: los books del feed
// push llegan tal cual los manda el servidor.
func (ob OrderBook) BestBid() float64 {
	best := 0.0
	for _, b := range ob.Bids {
		if b.Price > best {
			best = b.Price
		}
	}
	return best
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() float64 {
	best := 0.0
	for i, a := range ob.Asks {
		if i == 0 || a.Price < best {
			best = a.Price
		}
	}
	return best
}

// SizeAt suma el tamaño ofrecido en asks exactamente al precio dado.
func (ob OrderBook) SizeAt(price float64) float64 {
	var total float64
	for _, a := range ob.Asks {
		if a.Price == price {
			total += a.Size
		}
	}
	return total
}

// Midpoint devuelve el punto medio entre best bid y best ask.
func (ob OrderBook) Midpoint() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}
