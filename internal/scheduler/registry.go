package scheduler

import "time"

// addUpload appends a new upload to username's list, creating the list on
// demand. Duplicate filenames for the same user are allowed: the transfer
// engine treats repeat requests as retries and completes them one at a
// time, so each Enqueue call is a distinct queue entry. Must be called with
// s.mu held.
func (s *Scheduler) addUpload(username, filename string, now time.Time) *upload {
	u := newUpload(username, filename, now)
	s.byUser[username] = append(s.byUser[username], u)
	return u
}

// findUpload returns the first matching upload in enqueue order, or nil.
// Must be called with s.mu held.
func (s *Scheduler) findUpload(username, filename string) *upload {
	for _, u := range s.byUser[username] {
		if u.filename == filename {
			return u
		}
	}
	return nil
}

// removeUpload deletes u from its user's list, purging the user's entry
// entirely once it is empty. Must be called with s.mu held.
func (s *Scheduler) removeUpload(u *upload) {
	list := s.byUser[u.username]
	for i, candidate := range list {
		if candidate == u {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.byUser, u.username)
	} else {
		s.byUser[u.username] = list
	}
}
