package copystream

import (
	"fmt"
	"strings"
)

// psCopyScript is the remote side of the stream. It runs under WinRM where
// stdout is the only channel back, and must keep the record framing in step
// with the decoder: name, delimiter, base64 of a raw DeflateStream, newline.
const psCopyScript = `$ErrorActionPreference = "Stop"

function OutputEncodedFile {
    param([String]$filename, [IO.Stream]$instream)
    $trans = New-Object Security.Cryptography.ToBase64Transform
    $out = [Console]::OpenStandardOutput()
    $bs = New-Object Security.Cryptography.CryptoStream($out, $trans,
        [Security.Cryptography.CryptoStreamMode]::Write)
    $zs = New-Object IO.Compression.DeflateStream($bs,
        [IO.Compression.CompressionMode]::Compress)
    [Console]::Out.Write($filename + "%[1]c")
    [Console]::Out.Flush()
    try {
        $instream.CopyTo($zs)
    } finally {
        $zs.close()
        $bs.close()
        [Console]::Out.Write("` + "`" + `n")
        [Console]::Out.Flush()
    }
}

function GatherFiles {
    param([String[]]$patterns)
    ForEach ($pattern in $patterns) {
        $path = [Environment]::ExpandEnvironmentVariables($pattern)
        ForEach ($file in Get-Item -path $path) {
            try {
                $in = New-Object IO.FileStream($file, [IO.FileMode]::Open,
                    [IO.FileAccess]::Read, [IO.FileShare]"ReadWrite,Delete")
                try {
                    OutputEncodedFile -filename $file.name -instream $in
                } finally {
                    $in.close()
                }
            } catch {
                $utf8 = New-Object Text.UTF8Encoding($False)
                $errstream = New-Object IO.MemoryStream(
                    $utf8.GetBytes($_.Exception), $False)
                $errfilename = $file.name + "%[2]s"
                OutputEncodedFile -filename $errfilename -instream $errstream
            }
        }
    }
}

try {
    GatherFiles -patterns @(%[3]s)
} catch {
    Write-Error $_.Exception
    exit 1
}
`

// PowerShellScript returns the script that encodes every file matching
// globs to stdout. Windows %VAR% references in the globs are expanded on the
// remote machine; each glob is passed as a literal so PowerShell variables
// are not interpolated.
func PowerShellScript(globs []string) string {
	quoted := make([]string, len(globs))
	for i, glob := range globs {
		quoted[i] = psQuote(glob)
	}
	return fmt.Sprintf(psCopyScript, Delimiter, ErrorSuffix, strings.Join(quoted, ","))
}

// psQuote makes a single quoted PowerShell string literal
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
