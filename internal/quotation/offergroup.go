package quotation

import "iter"

// OfferGroup is a flat, id-indexed view over an offer tree. Offers appear in
// document order: every offer is followed by its revision chain.
type OfferGroup struct {
	order []*Offer
	byID  map[string]*Offer
}

// NewOfferGroup indexes the offers and all nested revisions. The group keeps
// pointers into the given slice.
func NewOfferGroup(offers []Offer) *OfferGroup {
	g := &OfferGroup{byID: make(map[string]*Offer)}
	for i := range offers {
		g.add(&offers[i])
	}
	return g
}

func (g *OfferGroup) add(o *Offer) {
	g.order = append(g.order, o)
	if o.ID != "" {
		if _, exists := g.byID[o.ID]; !exists {
			g.byID[o.ID] = o
		}
	}
	for i := range o.Revisions {
		g.add(&o.Revisions[i])
	}
}

// Resolve returns the offer or revision with the given id.
func (g *OfferGroup) Resolve(id string) (*Offer, bool) {
	if g == nil || id == "" {
		return nil, false
	}
	o, ok := g.byID[id]
	return o, ok
}

// First returns the first offer in document order.
func (g *OfferGroup) First() (*Offer, bool) {
	if g == nil || len(g.order) == 0 {
		return nil, false
	}
	return g.order[0], true
}

// All yields every offer and revision in document order.
func (g *OfferGroup) All() iter.Seq[*Offer] {
	return func(yield func(*Offer) bool) {
		if g == nil {
			return
		}
		for _, o := range g.order {
			if !yield(o) {
				return
			}
		}
	}
}

// Len reports the number of offers, revisions included.
func (g *OfferGroup) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

// Latest returns the highest revision for an offer number. Only this
// revision may be revised further.
func (g *OfferGroup) Latest(offerNumber int) (*Offer, bool) {
	var latest *Offer
	for o := range g.All() {
		if o.OfferNumber != offerNumber {
			continue
		}
		if latest == nil || o.RevisionNumber > latest.RevisionNumber {
			latest = o
		}
	}
	return latest, latest != nil
}
