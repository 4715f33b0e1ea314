package intake

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuongbtq/file-pipeline/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Validate(t *testing.T) {
	env := newTestEnv(t)

	writeTmp := func(t *testing.T, content []byte) string {
		t.Helper()
		tmp := filepath.Join(t.TempDir(), "received")
		require.NoError(t, os.WriteFile(tmp, content, 0o644))
		return tmp
	}

	csvBody := []byte("name,age\nalice,30\n")
	pngBody := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	tests := []struct {
		name    string
		file    func(t *testing.T) ReceivedFile
		wantMsg string
	}{
		{
			name: "valid csv",
			file: func(t *testing.T) ReceivedFile {
				return ReceivedFile{
					TmpPath:     writeTmp(t, csvBody),
					Name:        "data.csv",
					Size:        int64(len(csvBody)),
					ContentType: "text/csv",
					Code:        TransportOK,
				}
			},
		},
		{
			name: "declared type with parameters",
			file: func(t *testing.T) ReceivedFile {
				return ReceivedFile{
					TmpPath:     writeTmp(t, csvBody),
					Name:        "data.csv",
					Size:        int64(len(csvBody)),
					ContentType: "text/csv; charset=utf-8",
					Code:        TransportOK,
				}
			},
		},
		{
			name: "partial upload",
			file: func(t *testing.T) ReceivedFile {
				return ReceivedFile{Code: TransportPartial}
			},
			wantMsg: "the file was only partially uploaded",
		},
		{
			name: "no file",
			file: func(t *testing.T) ReceivedFile {
				return ReceivedFile{Code: TransportNoFile}
			},
			wantMsg: "no file was uploaded",
		},
		{
			name: "over size limit",
			file: func(t *testing.T) ReceivedFile {
				return ReceivedFile{
					TmpPath:     writeTmp(t, csvBody),
					Name:        "data.csv",
					Size:        env.service.limits.MaxFileSize + 1,
					ContentType: "text/csv",
					Code:        TransportOK,
				}
			},
			wantMsg: "file exceeds the maximum allowed size",
		},
		{
			name: "disallowed extension",
			file: func(t *testing.T) ReceivedFile {
				return ReceivedFile{
					TmpPath:     writeTmp(t, csvBody),
					Name:        "data.exe",
					Size:        int64(len(csvBody)),
					ContentType: "text/csv",
					Code:        TransportOK,
				}
			},
			wantMsg: "file extension is not allowed",
		},
		{
			name: "missing extension",
			file: func(t *testing.T) ReceivedFile {
				return ReceivedFile{
					TmpPath:     writeTmp(t, csvBody),
					Name:        "data",
					Size:        int64(len(csvBody)),
					ContentType: "text/csv",
					Code:        TransportOK,
				}
			},
			wantMsg: "file extension is not allowed",
		},
		{
			name: "disallowed declared type",
			file: func(t *testing.T) ReceivedFile {
				return ReceivedFile{
					TmpPath:     writeTmp(t, csvBody),
					Name:        "data.csv",
					Size:        int64(len(csvBody)),
					ContentType: "application/pdf",
					Code:        TransportOK,
				}
			},
			wantMsg: "file type is not allowed",
		},
		{
			name: "content does not match declared type",
			file: func(t *testing.T) ReceivedFile {
				return ReceivedFile{
					TmpPath:     writeTmp(t, pngBody),
					Name:        "data.csv",
					Size:        int64(len(pngBody)),
					ContentType: "text/csv",
					Code:        TransportOK,
				}
			},
			wantMsg: "file content does not match an allowed type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.service.validate(tt.file(t))
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *job.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantMsg, vErr.Message)
		})
	}
}

func TestService_ExtensionAllowed_CaseInsensitive(t *testing.T) {
	env := newTestEnv(t)

	assert.True(t, env.service.extensionAllowed("csv"))
	assert.True(t, env.service.extensionAllowed("txt"))
	assert.False(t, env.service.extensionAllowed("exe"))
}
