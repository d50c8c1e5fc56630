package db

import "testing"

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "postgres scheme",
			in:   "postgres://atlas:pw@localhost:5432/atlas?sslmode=disable",
			want: "pgx5://atlas:pw@localhost:5432/atlas?sslmode=disable",
		},
		{
			name: "postgresql scheme",
			in:   "postgresql://atlas@localhost/atlas",
			want: "pgx5://atlas@localhost/atlas",
		},
		{
			name:    "unsupported scheme",
			in:      "mysql://root@localhost/atlas",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := migrateURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("migrateURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("migrateURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
