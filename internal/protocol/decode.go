package protocol

func decodeEvent(b []byte, e *MessageEvent) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 2:
			e.MsgID = f.u
		case 4:
			e.CreateTime = f.u
		case 8:
			return walk(f.b, func(d field) error {
				switch d.num {
				case 1:
					e.DisplayType = d.str()
				case 2:
					e.Label = d.str()
				}
				return nil
			})
		}
		return nil
	})
}

func decodeUser(b []byte, u *User) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			u.UserID = f.u
		case 3:
			u.Nickname = f.str()
		case 5:
			u.BioDescription = f.str()
		case 9:
			err = walk(f.b, func(p field) error {
				if p.num == 1 {
					u.ProfilePictureURLs = append(u.ProfilePictureURLs, p.str())
				}
				return nil
			})
		case 16:
			u.CreateTime = f.u
		case 22:
			u.FollowInfo, err = sub(f, decodeFollowInfo)
		case 38:
			u.UniqueID = f.str()
		case 46:
			u.SecUID = f.str()
		case 64:
			var badge *Badge
			if badge, err = sub(f, decodeBadge); err == nil {
				u.Badges = append(u.Badges, *badge)
			}
		}
		return err
	})
}

func decodeFollowInfo(b []byte, fi *FollowInfo) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			fi.FollowingCount = f.i32()
		case 2:
			fi.FollowerCount = f.i32()
		case 3:
			fi.FollowStatus = f.i32()
		case 4:
			fi.PushStatus = f.i32()
		}
		return nil
	})
}

func decodeBadge(b []byte, badge *Badge) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			badge.Type = f.str()
		case 2:
			badge.Name = f.str()
		case 3:
			badge.Level = f.i32()
		}
		return nil
	})
}

func decodeEmote(b []byte, e *Emote) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			e.EmoteID = f.str()
		case 2:
			return walk(f.b, func(img field) error {
				if img.num == 1 {
					e.ImageURL = img.str()
				}
				return nil
			})
		}
		return nil
	})
}

func decodeChatEmote(b []byte, ce *ChatEmote) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			ce.PlaceInComment = f.i32()
		case 2:
			ce.Emote, err = sub(f, decodeEmote)
		}
		return err
	})
}

func decodeChat(b []byte, m *ChatMessage) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Event, err = sub(f, decodeEvent)
		case 2:
			m.User, err = sub(f, decodeUser)
		case 3:
			m.Comment = f.str()
		case 13:
			var ce *ChatEmote
			if ce, err = sub(f, decodeChatEmote); err == nil {
				m.Emotes = append(m.Emotes, *ce)
			}
		}
		return err
	})
}

func decodeMember(b []byte, m *MemberMessage) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Event, err = sub(f, decodeEvent)
		case 2:
			m.User, err = sub(f, decodeUser)
		case 10:
			m.ActionID = f.i32()
		}
		return err
	})
}

func decodeGiftDetails(b []byte, d *GiftDetails) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			return walk(f.b, func(img field) error {
				if img.num == 1 {
					d.PictureURL = img.str()
				}
				return nil
			})
		case 2:
			d.Describe = f.str()
		case 11:
			d.GiftType = f.i32()
		case 12:
			d.DiamondCount = f.i32()
		case 16:
			d.GiftName = f.str()
		}
		return nil
	})
}

func decodeGiftExtra(b []byte, e *GiftExtra) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 6:
			e.Timestamp = f.u
		case 8:
			e.ReceiverUserID = f.u
		}
		return nil
	})
}

func decodeGift(b []byte, m *GiftMessage) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Event, err = sub(f, decodeEvent)
		case 2:
			m.GiftID = f.i32()
		case 5:
			m.RepeatCount = f.i32()
		case 7:
			m.User, err = sub(f, decodeUser)
		case 9:
			m.RepeatEnd = f.i32()
		case 11:
			m.GroupID = f.u
		case 15:
			m.Details, err = sub(f, decodeGiftDetails)
		case 22:
			m.MonitorExtra = f.str()
		case 23:
			m.Extra, err = sub(f, decodeGiftExtra)
		}
		return err
	})
}

func decodeLike(b []byte, m *LikeMessage) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Event, err = sub(f, decodeEvent)
		case 2:
			m.LikeCount = f.i32()
		case 3:
			m.TotalLikeCount = f.i32()
		case 5:
			m.User, err = sub(f, decodeUser)
		}
		return err
	})
}

func decodeSocial(b []byte, m *SocialMessage) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Event, err = sub(f, decodeEvent)
		case 2:
			m.User, err = sub(f, decodeUser)
		}
		return err
	})
}

func decodeTopViewer(b []byte, tv *TopViewer) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			tv.CoinCount = f.u
		case 2:
			tv.User, err = sub(f, decodeUser)
		}
		return err
	})
}

func decodeRoomUserSeq(b []byte, m *RoomUserSeqMessage) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 2:
			tv, err := sub(f, decodeTopViewer)
			if err != nil {
				return err
			}
			m.TopViewers = append(m.TopViewers, *tv)
		case 3:
			m.ViewerCount = f.i32()
		}
		return nil
	})
}

func decodeControl(b []byte, m *ControlMessage) error {
	return walk(b, func(f field) error {
		if f.num == 2 {
			m.Action = f.i32()
		}
		return nil
	})
}

func decodeLinkMicBattle(b []byte, m *LinkMicBattleMessage) error {
	return walk(b, func(f field) error {
		if f.num != 10 {
			return nil
		}
		return walk(f.b, func(bu field) error {
			if bu.num != 2 {
				return nil
			}
			return walk(bu.b, func(g field) error {
				if g.num != 1 {
					return nil
				}
				u, err := sub(g, decodeUser)
				if err != nil {
					return err
				}
				m.BattleUsers = append(m.BattleUsers, u)
				return nil
			})
		})
	})
}

func decodeArmiesGroup(b []byte, g *ArmiesGroup) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			u, err := sub(f, decodeUser)
			if err != nil {
				return err
			}
			g.Users = append(g.Users, u)
		case 2:
			g.Points = f.i32()
		}
		return nil
	})
}

func decodeArmiesItem(b []byte, it *ArmiesItem) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			it.HostUserID = f.u
		case 2:
			g, err := sub(f, decodeArmiesGroup)
			if err != nil {
				return err
			}
			it.Groups = append(it.Groups, *g)
		}
		return nil
	})
}

func decodeLinkMicArmies(b []byte, m *LinkMicArmiesMessage) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 3:
			it, err := sub(f, decodeArmiesItem)
			if err != nil {
				return err
			}
			m.BattleItems = append(m.BattleItems, *it)
		case 7:
			m.BattleStatus = f.i32()
		}
		return nil
	})
}

func decodeLiveIntro(b []byte, m *LiveIntroMessage) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 2:
			m.ID = f.u
		case 4:
			m.Description = f.str()
		case 5:
			m.User, err = sub(f, decodeUser)
		}
		return err
	})
}

func decodeEmoteChat(b []byte, m *EmoteChatMessage) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 2:
			m.User, err = sub(f, decodeUser)
		case 3:
			m.Emote, err = sub(f, decodeEmote)
		}
		return err
	})
}

func decodeTreasureBoxData(b []byte, d *TreasureBoxData) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 5:
			d.Coins = f.u32()
		case 6:
			d.CanOpen = f.u32()
		case 7:
			d.Timestamp = f.u
		}
		return nil
	})
}

func decodeEnvelope(b []byte, m *EnvelopeMessage) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			err = walk(f.b, func(box field) error {
				if box.num != 8 {
					return nil
				}
				return walk(box.b, func(uf field) error {
					if uf.num != 4 {
						return nil
					}
					u, err := sub(uf, decodeUser)
					if err != nil {
						return err
					}
					m.BoxUsers = append(m.BoxUsers, u)
					return nil
				})
			})
		case 2:
			m.BoxData, err = sub(f, decodeTreasureBoxData)
		}
		return err
	})
}

func decodeSubNotify(b []byte, m *SubNotifyMessage) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Event, err = sub(f, decodeEvent)
		case 2:
			m.User, err = sub(f, decodeUser)
		case 3:
			m.ExhibitionType = f.i32()
		case 4:
			m.SubMonth = f.i32()
		case 5:
			m.SubscribeType = f.i32()
		case 6:
			m.OldSubscribeStatus = f.i32()
		case 8:
			m.SubscribingStatus = f.i32()
		}
		return err
	})
}

func decodeQuestionNew(b []byte, m *QuestionNewMessage) error {
	return walk(b, func(f field) error {
		if f.num != 2 {
			return nil
		}
		return walk(f.b, func(q field) error {
			var err error
			switch q.num {
			case 2:
				m.QuestionText = q.str()
			case 5:
				m.User, err = sub(q, decodeUser)
			}
			return err
		})
	})
}
