package handler

type UploadImageParams struct {
	OwnerID string `validate:"required,max=64"` // images.owner_id (NOT NULL)
}
