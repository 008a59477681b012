package dto

// AcceptOfferQuery carries a signed accept link token.
type AcceptOfferQuery struct {
	Token string `form:"token" binding:"required"`
}

// RosterQuery selects the roster export format.
type RosterQuery struct {
	Format string `form:"format"`
}
