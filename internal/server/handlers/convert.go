package handlers

import (
	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/history"
	"github.com/maruel/insurdash/internal/server/dto"
)

// --- Dataset to DTO conversions ---

func recordToDTO(r *dataset.Record) dto.Record {
	return dto.Record{
		Age:      r.Age,
		Sex:      r.Sex,
		BMI:      r.BMI,
		Children: r.Children,
		Smoker:   r.Smoker,
		Region:   r.Region,
		Charges:  r.Charges,
	}
}

func recordsToDTO(rows []dataset.Record) []dto.Record {
	out := make([]dto.Record, len(rows))
	for i := range rows {
		out[i] = recordToDTO(&rows[i])
	}
	return out
}

func commitsToDTO(commits []history.Commit) []dto.Commit {
	out := make([]dto.Commit, len(commits))
	for i, c := range commits {
		out[i] = dto.Commit(c)
	}
	return out
}

func summaryToDTO(s dataset.Summary) dto.Summary {
	return dto.Summary(s)
}

func summariesToDTO(m map[string]dataset.Summary) map[string]dto.Summary {
	out := make(map[string]dto.Summary, len(m))
	for k, v := range m {
		out[k] = summaryToDTO(v)
	}
	return out
}

func statsToDTO(st *dataset.Stats) *dto.StatsResponse {
	return &dto.StatsResponse{
		Records:                    st.Records,
		BySex:                      st.BySex,
		BySmoker:                   st.BySmoker,
		ChildrenBySex:              st.ChildrenBySex,
		BMIBySmoker:                summariesToDTO(st.BMIBySmoker),
		ChargesBySmokerSex:         st.ChargesBySmokerSex,
		AvgChargesByRegion:         st.AvgChargesByRegion,
		SmokersByRegion:            st.SmokersByRegion,
		ChildrenByRegion:           st.ChildrenByRegion,
		ChargesBySmoker:            summariesToDTO(st.ChargesBySmoker),
		AvgChargesByRegionChildren: st.AvgChargesByRegionChildren,
		Correlation:                dto.Correlation(st.Correlation),
	}
}

// --- DTO to dataset conversions ---

func matchRequestToQuery(req *dto.MatchRequest) *dataset.Query {
	return &dataset.Query{
		Age:      *req.Age,
		BMI:      *req.BMI,
		Sex:      req.Gender,
		Children: *req.Children,
		Smoker:   req.Smoke,
		Region:   req.Region,
	}
}

// addRequestToRecord builds the record to store. Categorical values are kept
// as submitted; readers compare them case-insensitively.
func addRequestToRecord(req *dto.AddRecordRequest) dataset.Record {
	return dataset.Record{
		Age:      *req.Age,
		Sex:      req.Sex,
		BMI:      *req.BMI,
		Children: *req.Children,
		Smoker:   req.Smoker,
		Region:   req.Region,
		Charges:  *req.Charges,
	}
}
