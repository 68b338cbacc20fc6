package rpc

import (
	"github.com/kilianp07/ctramp/core/matrix"
	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/random"
)

const (
	MatrixServiceName    = "ctramp.matrix.v1.MatrixService"
	HouseholdServiceName = "ctramp.household.v1.HouseholdService"

	GetMatrixProcedure   = "/" + MatrixServiceName + "/GetMatrix"
	ClearProcedure       = "/" + MatrixServiceName + "/Clear"
	PingProcedure        = "/" + MatrixServiceName + "/Ping"
	LenProcedure         = "/" + HouseholdServiceName + "/Len"
	IndexProcedure       = "/" + HouseholdServiceName + "/Index"
	RangeProcedure       = "/" + HouseholdServiceName + "/Range"
	SetRangeProcedure    = "/" + HouseholdServiceName + "/SetRange"
	RandomOrderProcedure = "/" + HouseholdServiceName + "/RandomOrder"
	HomeZoneProcedure    = "/" + HouseholdServiceName + "/HomeZoneOrder"
	MarkStageProcedure   = "/" + HouseholdServiceName + "/MarkStage"
	ResetStageProcedure  = "/" + HouseholdServiceName + "/ResetStage"
)

type Empty struct{}

type GetMatrixRequest struct {
	Entry matrix.DataEntry `json:"entry"`
}

type GetMatrixResponse struct {
	Matrix *matrix.Matrix `json:"matrix"`
}

type PingRequest struct {
	Caller string `json:"caller"`
}

type PingResponse struct {
	Server string `json:"server"`
}

type LenResponse struct {
	Len int `json:"len"`
}

type IndexRequest struct {
	HouseholdID int `json:"household_id"`
}

type IndexResponse struct {
	Index int `json:"index"`
}

type RangeRequest struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

type RangeResponse struct {
	Households []*model.Household `json:"households"`
}

type SetRangeRequest struct {
	Start      int                `json:"start"`
	Households []*model.Household `json:"households"`
}

type RandomOrderRequest struct {
	N int `json:"n"`
}

type OrderResponse struct {
	Order []int `json:"order"`
}

type HomeZoneOrderRequest struct {
	HouseholdIDs []int `json:"household_ids"`
}

type StageRequest struct {
	Stage random.Stage `json:"stage"`
}
