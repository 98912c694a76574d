package vectorstore

import "testing"

func TestCollectionName(t *testing.T) {
	s := &MilvusStore{prefix: "doc_qa"}

	folder := "f1a2b3c4-d5e6-7890-abcd-ef0123456789"
	cases := []struct {
		name     string
		tenantID string
		userID   string
		folderID *string
		want     string
	}{
		{
			name:     "root folder",
			tenantID: "tenant-1",
			userID:   "user-1",
			folderID: nil,
			want:     "doc_qa_tenant_1_user_1_root",
		},
		{
			name:     "empty folder id treated as root",
			tenantID: "t",
			userID:   "u",
			folderID: strPtr(""),
			want:     "doc_qa_t_u_root",
		},
		{
			name:     "uuid hyphens rewritten",
			tenantID: "11111111-2222-3333-4444-555555555555",
			userID:   "u",
			folderID: &folder,
			want:     "doc_qa_11111111_2222_3333_4444_555555555555_u_f1a2b3c4_d5e6_7890_abcd_ef0123456789",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.CollectionName(tc.tenantID, tc.userID, tc.folderID); got != tc.want {
				t.Errorf("CollectionName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func strPtr(s string) *string { return &s }
