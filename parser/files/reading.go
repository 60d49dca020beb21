package files

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path"
	"strings"

	pt "github.com/activecm/connwatch/parser/parsetypes"
	"github.com/activecm/connwatch/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// logSuffixes lists the file extensions treated as connection logs
var logSuffixes = []string{".log", ".txt", ".gz"}

// hasLogSuffix returns true if the file name ends in a connection log extension
func hasLogSuffix(name string) bool {
	for _, suffix := range logSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// GatherLogFiles reads the files and directories looking for log, txt, and gz files
func GatherLogFiles(paths []string, logger *log.Logger) []string {
	var toReturn []string

	for _, path := range paths {
		if util.IsDir(path) {
			toReturn = append(toReturn, gatherDir(path, logger)...)
		} else if hasLogSuffix(path) {
			toReturn = append(toReturn, path)
		} else {
			logger.WithFields(log.Fields{
				"path": path,
			}).Warn("Ignoring non .log, .txt, or .gz file")
		}
	}

	return toReturn
}

// gatherDir reads the directory looking for log, txt, and gz files
func gatherDir(cpath string, logger *log.Logger) []string {
	var toReturn []string
	files, err := ioutil.ReadDir(cpath)
	if err != nil {
		logger.WithFields(log.Fields{
			"error": err.Error(),
			"path":  cpath,
		}).Error("Error when reading directory")
	}

	for _, file := range files {
		if !file.IsDir() && hasLogSuffix(file.Name()) {
			toReturn = append(toReturn, path.Join(cpath, file.Name()))
		}
	}
	return toReturn
}

// GetFileScanner returns a buffered file scanner for a connection log, a function to close the
// underlying stream and any associated processors, as well as any error that may occur while
// creating the scanner
func GetFileScanner(fileHandle *os.File) (scanner *bufio.Scanner, closer func() error, err error) {
	// by default just close out the underlying file handle
	closer = fileHandle.Close

	if strings.HasSuffix(fileHandle.Name(), ".gz") {
		var gzipReader io.Reader
		gzipReader, closer, err = newGzipReader(fileHandle)
		if err != nil {
			return nil, closer, err
		}
		scanner = bufio.NewScanner(gzipReader)
	} else {
		scanner = bufio.NewScanner(fileHandle)
	}

	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner, closer, nil
}

//newGzipReader returns an un-gzipped byte stream given a gzip compressed byte stream.
//This method tries to use the system's pigz or gzip implementation before relying on
//Golang's gzip package (as it is quite slow). Returns stream to read from, a function to
//close the underlying stream, and any err that may occur when opening the stream.
func newGzipReader(fileHandle io.ReadCloser) (reader io.Reader, closer func() error, err error) {
	// by default just close out the underlying file handle
	// works for built in gzip library and error cases
	closer = fileHandle.Close

	var gzipPath string
	if path, err := exec.LookPath("pigz"); err == nil {
		gzipPath = path
	} else if path, err := exec.LookPath("gzip"); err == nil {
		gzipPath = path
	} else {
		// can't find system command, use golang lib, no special closing logic needed other than
		// to close the underlying file descriptor
		reader, err = gzip.NewReader(fileHandle)
		return reader, closer, err
	}

	// create the subprocess
	ctx, cancel := context.WithCancel(context.Background())
	gzipCommand := exec.CommandContext(ctx, gzipPath, "-d", "-c")

	// tell the subprocess to read from the given stream
	gzipCommand.Stdin = fileHandle

	// return/ pipe the output back out to the caller
	pipeR, err := gzipCommand.StdoutPipe()
	if err != nil {
		cancel()
		return reader, fileHandle.Close, err
	}

	var cmdStdErr bytes.Buffer
	gzipCommand.Stderr = &cmdStdErr

	if err := gzipCommand.Start(); err != nil {
		cancel()
		return reader, fileHandle.Close, err
	}

	// update the closer to kill the subprocess in addition to closing the file descriptor
	closer = func() error {
		// kill the subprocess, any errors will come out on the read side or during Wait
		cancel()
		// close the file that was passed in
		errFile := fileHandle.Close()
		// wait for the subprocess to finish out
		errProc := gzipCommand.Wait()

		// add StdErr to the process error if the command returned a nonzero code
		if errProc != nil && cmdStdErr.Len() > 0 {
			errProc = fmt.Errorf("%s: %s", errProc.Error(), cmdStdErr.String())
		}

		// handle return errors up
		if errProc != nil && errFile != nil {
			return fmt.Errorf("%s; %s", errProc.Error(), errFile.Error())
		}
		if errProc != nil {
			return errProc
		}
		return errFile
	}

	return pipeR, closer, nil
}

// ReadConns reads every well formed connection record out of a closed log file,
// in file order. Malformed lines are reported through the counter and skipped.
func ReadConns(filePath string, counter *LineCounter) ([]*pt.Conn, error) {
	var conns []*pt.Conn
	err := ScanConns(filePath, counter, func(conn *pt.Conn) {
		conns = append(conns, conn)
	})
	return conns, err
}

// ScanConns calls visit with every well formed connection record in a closed
// log file, in file order, without holding the whole file in memory.
func ScanConns(filePath string, counter *LineCounter, visit func(*pt.Conn)) (err error) {
	fileHandle, err := os.Open(filePath)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", filePath)
	}

	fileScanner, closer, err := GetFileScanner(fileHandle)
	defer func() {
		if closeErr := closer(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "could not close %s", filePath)
		}
	}()
	if err != nil {
		return errors.Wrapf(err, "could not read from %s", filePath)
	}

	for fileScanner.Scan() {
		if conn := counter.Parse(fileScanner.Text()); conn != nil {
			visit(conn)
		}
	}
	if err := fileScanner.Err(); err != nil {
		return errors.Wrapf(err, "could not read from %s", filePath)
	}
	return nil
}
