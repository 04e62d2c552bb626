package handler

import "github.com/ifl-de/intake-api/internal/core/domain"

const documentsPath = "/api/documents/"

func toDocumentResponse(d *domain.Document) documentResponse {
	return documentResponse{
		Document: d,
		Links: documentLinks{
			Self:    documentsPath + d.ID,
			Content: documentsPath + d.ID + "/content",
		},
	}
}

func toDocumentListResponse(docs []*domain.Document) documentListResponse {
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	return documentListResponse{Documents: out, Count: len(out)}
}
