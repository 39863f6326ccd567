package memberships

import (
	"github.com/angelmondragon/stagecall/pkg/db/models"
)

func membershipFromModel(row models.CommunityMembership) Membership {
	return Membership{
		CommunityID: row.CommunityID,
		UserID:      row.UserID,
		MicLevel:    row.MicLevel,
	}
}

func membershipsFromModels(rows []models.CommunityMembership) []Membership {
	out := make([]Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, membershipFromModel(row))
	}
	return out
}

func speakerFromModel(row models.CommunityMembership) *Speaker {
	if row.EndingAt == nil {
		return nil
	}
	return &Speaker{
		UserID:   row.UserID,
		EndingAt: row.EndingAt.UTC(),
	}
}
