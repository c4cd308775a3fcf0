package models

// SubjectKind discriminates the two reward-bearing entity types.
type SubjectKind string

const (
	SubjectPlayer SubjectKind = "player"
	SubjectGroup  SubjectKind = "group"
)

// Subject is the common surface of Player and PlayerGroup: anything that can
// hold coins and points, carry roles and finish goals. Settlement and goal
// tracking dispatch through it so both subject types share one code path.
type Subject interface {
	SubjectKind() SubjectKind
	SubjectID() string
	OrganisationKey() string
	GetCoins() int64
	GetPoints() int64
	AddCoins(amount int64)
	AddPoints(amount int64)
	SetLevel(index int, label string)
	RoleIDs() []string
}
